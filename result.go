package ridb

import (
	"fmt"
	"strings"

	"github.com/kaptinlin/go-i18n"
)

// replaceParams substitutes {key} placeholders in a message template
// with the corresponding entry from params.
func replaceParams(template string, params map[string]any) string {
	for key, value := range params {
		template = strings.ReplaceAll(template, "{"+key+"}", fmt.Sprint(value))
	}
	return template
}

// Localize returns a human-readable message for a ValidationError using
// the given localizer, falling back to the default English message when
// localizer is nil.
func (e *ValidationError) Localize(localizer *i18n.Localizer) string {
	if localizer == nil {
		return e.Error()
	}
	return e.Path + ": " + localizer.Get(e.Code, i18n.Vars(e.Params))
}

// Localize returns a human-readable message for a QueryError using the
// given localizer, falling back to the default English message when
// localizer is nil.
func (e *QueryError) Localize(localizer *i18n.Localizer) string {
	if localizer == nil {
		return e.Error()
	}
	msg := localizer.Get(e.Code, i18n.Vars(e.Params))
	if e.Field == "" {
		return msg
	}
	return e.Field + ": " + msg
}
