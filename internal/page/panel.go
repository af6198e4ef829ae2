package page

import (
	"io"
	"strings"
	"sync"
)

// Node is one rendered message in a panel.
type Node struct {
	Sender    string
	Body      string
	Timestamp string
	HTML      string
}

// Panel is a scrollable message list. Each node counts as one unit of
// scroll height.
type Panel struct {
	mu        sync.Mutex
	nodes     []Node
	scrollTop int
	mirror    io.Writer
}

func NewPanel() *Panel {
	return &Panel{}
}

// Mirror makes the panel write every appended node's HTML, newline
// terminated, to w.
func (p *Panel) Mirror(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mirror = w
}

func (p *Panel) Append(sender, body, ts string) Node {
	n := Node{
		Sender:    sender,
		Body:      body,
		Timestamp: ts,
		HTML:      RenderNode(sender, body, ts),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = append(p.nodes, n)
	if p.mirror != nil {
		_, _ = io.WriteString(p.mirror, n.HTML+"\n")
	}
	return n
}

func (p *Panel) ScrollToBottom() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollTop = len(p.nodes)
}

func (p *Panel) ScrollTop() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollTop
}

func (p *Panel) ScrollHeight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// Nodes returns a copy of the panel contents in display order.
func (p *Panel) Nodes() []Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// HTML returns the concatenated markup of all nodes.
func (p *Panel) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder
	for _, n := range p.nodes {
		sb.WriteString(n.HTML)
	}
	return sb.String()
}
