package graph

import (
	"fmt"
	"strings"
	"time"
)

// DefaultBaseContext is the standing extraction guidance sent with every
// episode. Channel overlays and scene hints are layered on top per call.
const DefaultBaseContext = `Extract entities and relationships that matter for long-term continuity:
people, places, symbols, concepts, and technical artifacts. Prefer durable
facts over transient state. Record who did what, decisions made, and
relationships between named things. Skip filler, greetings, and retries.`

// DefaultChannelOverlays adjusts extraction emphasis per conversation channel.
var DefaultChannelOverlays = map[string]string{
	"chat":       "This is live conversation. Weight emotional tone, commitments, and interpersonal facts.",
	"terminal":   "This is a working terminal session. Weight technical artifacts, tools, file names, and outcomes of commands.",
	"reflection": "This is background reflection. Weight self-observations, evolving themes, and connections across earlier material.",
}

// ComposeInput names every ingredient of the per-call extraction guidance.
// Composition is deterministic: the same input always yields the same text.
type ComposeInput struct {
	// BaseContext is the standing guidance. Defaults to DefaultBaseContext.
	BaseContext string

	// Channel selects one overlay from Overlays by exact match.
	Channel string

	// Overlays maps channel names to guidance fragments.
	// Defaults to DefaultChannelOverlays.
	Overlays map[string]string

	// SceneHints are dynamic fragments describing the current scene,
	// included in the order given.
	SceneHints []string

	// RecencyNote describes how recent the material is, derived from
	// ReferenceTime when set.
	ReferenceTime time.Time
	Now           time.Time
}

// ComposeExtractionContext assembles the extraction guidance for one episode.
// Order is fixed: base, channel overlay, scene hints, recency note.
func ComposeExtractionContext(in ComposeInput) string {
	base := in.BaseContext
	if base == "" {
		base = DefaultBaseContext
	}

	overlays := in.Overlays
	if overlays == nil {
		overlays = DefaultChannelOverlays
	}

	parts := []string{base}

	if overlay, ok := overlays[in.Channel]; ok && overlay != "" {
		parts = append(parts, overlay)
	}

	for _, hint := range in.SceneHints {
		if hint != "" {
			parts = append(parts, "Scene: "+hint)
		}
	}

	if !in.ReferenceTime.IsZero() && !in.Now.IsZero() {
		age := in.Now.Sub(in.ReferenceTime)
		switch {
		case age < time.Hour:
			parts = append(parts, "This material is from the last hour; treat it as the current scene.")
		case age < 24*time.Hour:
			parts = append(parts, "This material is from the last day.")
		default:
			parts = append(parts, fmt.Sprintf("This material is roughly %d days old; it is background, not the current scene.", int(age.Hours()/24)))
		}
	}

	return strings.Join(parts, "\n\n")
}
