package brutaltpl

import "github.com/edwingeng/deque"

// ----------------------------- Frames ---------------------------------------

// Frame is a scope of template variables. Lookups walk the parent chain and
// end at the root data context.
type Frame struct {
	vars   map[string]any
	parent *Frame
	root   any
}

// NewFrame returns the outermost frame for a render over root.
func NewFrame(root any) *Frame { return &Frame{root: root} }

// Child returns a frame whose bindings shadow f's.
func (f *Frame) Child(vars map[string]any) *Frame {
	return &Frame{vars: vars, parent: f, root: f.root}
}

// Lookup resolves name. Missing names yield Undefined, never an error.
func (f *Frame) Lookup(name string) any {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.vars[name]; ok {
			return v
		}
	}
	if v, ok := property(f.root, name); ok {
		return v
	}
	return Undefined
}

// Root returns the data context the frame chain was started with.
func (f *Frame) Root() any { return f.root }

// frameStack holds the active frames of a render. Loops push one frame per
// iteration and pop it before the next, so bindings never leak to siblings
// or to the enclosing scope.
type frameStack struct {
	frames deque.Deque
}

func newFrameStack() *frameStack {
	return &frameStack{frames: deque.NewDeque()}
}

func (s *frameStack) reset(root any) {
	for !s.frames.Empty() {
		s.frames.PopBack()
	}
	s.frames.PushBack(NewFrame(root))
}

func (s *frameStack) top() *Frame { return s.frames.Back().(*Frame) }

func (s *frameStack) push(vars map[string]any) *Frame {
	f := s.top().Child(vars)
	s.frames.PushBack(f)
	return f
}

func (s *frameStack) pop() { s.frames.PopBack() }

func (s *frameStack) depth() int { return s.frames.Len() }
