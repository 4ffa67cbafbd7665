package conversation

import "ilochat/internal/api"

// Defaults applied when an action omits its presentation hints.
const (
	defaultPresentation = "popup"
	defaultContext      = "ILO"
)

// firstPatternDirective scans actions in array order and returns a
// directive for the first show_pattern action whose payload carries a
// patterns list. Later matches in the same array are ignored.
func firstPatternDirective(actions []api.Action) *Directive {
	for _, a := range actions {
		if a.ActionType != "show_pattern" || a.Payload.Patterns == nil {
			continue
		}
		d := &Directive{
			Patterns:     a.Payload.Patterns,
			Presentation: a.UI.Presentation,
			Context:      a.Target.Context,
		}
		if d.Presentation == "" {
			d.Presentation = defaultPresentation
		}
		if d.Context == "" {
			d.Context = defaultContext
		}
		return d
	}
	return nil
}
