package design

// Kind is the closed set of element variants the merge understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindImage
	KindSVG
	KindFigure
	KindLine
	KindGroup
)

var kindNames = map[string]Kind{
	"text":   KindText,
	"image":  KindImage,
	"svg":    KindSVG,
	"figure": KindFigure,
	"line":   KindLine,
	"group":  KindGroup,
}

// ParseKind maps an element "type" string to its Kind.
func ParseKind(s string) Kind {
	if kind, ok := kindNames[s]; ok {
		return kind
	}
	return KindUnknown
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}
