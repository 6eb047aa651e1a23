package binding

// Hook is a host-only class member that is not backed by a single native
// entry point. It is either a structured call template or a reference to a
// named snippet the host emitter resolves.
type Hook interface {
	HookName() string
	IsStatic() bool
	hook()
}

// TemplateHook selects one of the class's own methods to forward to, based
// on the arguments supplied. The first branch whose condition holds wins.
type TemplateHook struct {
	Name     string
	Static   bool
	Branches []HookBranch
}

// HookBranch forwards to Target after applying Transform to the arguments.
// Arguments past the end of Transform are passed unchanged.
type HookBranch struct {
	When      Condition
	Target    string
	Transform []ArgTransform
}

// SnippetHook refers to host source kept outside the declaration, keyed by id.
type SnippetHook struct {
	Name      string
	Static    bool
	SnippetID string
}

func (h *TemplateHook) HookName() string { return h.Name }
func (h *TemplateHook) IsStatic() bool   { return h.Static }
func (h *TemplateHook) hook()            {}

func (h *SnippetHook) HookName() string { return h.Name }
func (h *SnippetHook) IsStatic() bool   { return h.Static }
func (h *SnippetHook) hook()            {}

// Condition guards a hook branch.
type Condition interface {
	condition()
}

// Always matches every call.
type Always struct{}

// NoArgs matches calls without arguments.
type NoArgs struct{}

// ArgIsInstance matches when argument Index is an object of Class.
type ArgIsInstance struct {
	Index int
	Class *Class
}

func (Always) condition()        {}
func (NoArgs) condition()        {}
func (ArgIsInstance) condition() {}

// ArgTransform rewrites one argument before forwarding.
type ArgTransform int

const (
	PassArg ArgTransform = iota
	// StrList converts an iterable into a list of strings.
	StrList
)

func (t ArgTransform) String() string {
	if t == StrList {
		return "strlist"
	}
	return "pass"
}
