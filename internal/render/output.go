package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/logging"
	"github.com/joss/xpost/internal/orchestrator"
	"github.com/joss/xpost/internal/page"
	"github.com/joss/xpost/internal/protocol"
	"github.com/joss/xpost/pkg/llm"
)

// Renderer formats popup output. Plain mode emits no color and no
// decoration, one fact per line.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Status formats a status line.
func (r *Renderer) Status(st orchestrator.Status) string {
	if st.Kind == orchestrator.StatusNone {
		return ""
	}
	if !r.pretty {
		return fmt.Sprintf("%s: %s\n", st.Kind, st.Message)
	}
	icon := StatusIcon(string(st.Kind))
	switch st.Kind {
	case orchestrator.StatusSuccess:
		return color.GreenString("%s %s", icon, st.Message) + "\n"
	case orchestrator.StatusError:
		return color.RedString("%s %s", icon, st.Message) + "\n"
	default:
		return color.CyanString("%s %s", icon, st.Message) + "\n"
	}
}

// CharCount formats "n/280", red when over the limit.
func (r *Renderer) CharCount(text string) string {
	c := orchestrator.CharCount(text)
	s := fmt.Sprintf("%d/%d", c.N, domain.MaxPostLength)
	if r.pretty {
		if c.Over {
			return color.RedString(s)
		}
		return color.HiBlackString(s)
	}
	return s
}

// Draft formats generated content with its character count.
func (r *Renderer) Draft(content string) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Generated post") + " " + r.CharCount(content) + "\n")
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		sb.WriteString(content + "\n")
	} else {
		sb.WriteString(content + "\n")
	}
	return sb.String()
}

// Settings formats stored provider settings. Keys are redacted.
func (r *Renderer) Settings(s *domain.Settings, catalog *llm.Catalog) string {
	var sb strings.Builder
	active := s.ActiveProvider
	if active == "" {
		active = llm.DefaultProvider
	}

	if r.pretty {
		sb.WriteString(color.CyanString("Settings\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
	}
	for _, id := range catalog.IDs() {
		ps := s.Provider(id)
		key := "(not set)"
		if ps.APIKey != "" {
			key = logging.Redact(ps.APIKey)
		}
		marker := " "
		if id == active {
			marker = "*"
		}
		if r.pretty {
			if id == active {
				marker = color.GreenString("*")
			}
			fmt.Fprintf(&sb, "%s %-7s key=%s model=%s\n", marker, id, key, ps.Model)
		} else {
			fmt.Fprintf(&sb, "provider=%s active=%v key=%s model=%s\n", id, id == active, key, ps.Model)
		}
	}
	return sb.String()
}

// Providers lists the provider catalog.
func (r *Renderer) Providers(catalog *llm.Catalog) string {
	var sb strings.Builder
	for _, p := range catalog.List() {
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s\n", color.CyanString(p.ID), color.HiBlackString(p.BaseURL))
		} else {
			fmt.Fprintf(&sb, "%s %s\n", p.ID, p.BaseURL)
		}
		for _, m := range p.Models {
			def := ""
			if m.ID == p.DefaultModel {
				def = " (default)"
			}
			vision := ""
			if m.Vision {
				vision = " [vision]"
			}
			fmt.Fprintf(&sb, "  %s%s%s\n", m.ID, def, vision)
		}
	}
	return sb.String()
}

// PostContext formats what the page agent sees on screen.
func (r *Renderer) PostContext(pc protocol.PostContext) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Page\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
	}
	fmt.Fprintf(&sb, "url:     %s\n", pc.URL)
	fmt.Fprintf(&sb, "post id: %s\n", orNone(domain.Deref(pc.PostID)))
	if p := pc.OriginalPost; p != nil {
		fmt.Fprintf(&sb, "author:  %s\n", orNone(p.Author))
		fmt.Fprintf(&sb, "text:    %s\n", Truncate(p.Text, 200))
		if p.HasImage && p.ImageData != nil {
			fmt.Fprintf(&sb, "image:   %s\n", p.ImageData.URL)
		}
	} else {
		sb.WriteString("post:    (none)\n")
	}
	return sb.String()
}

// Selectors lists the selector table sorted by name.
func (r *Renderer) Selectors(sel page.Selectors) string {
	names := make([]string, 0, len(sel))
	for n := range sel {
		names = append(names, n)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, n := range names {
		if r.pretty {
			fmt.Fprintf(&sb, "%-18s %s\n", color.CyanString(n), sel[n])
		} else {
			fmt.Fprintf(&sb, "%s\t%s\n", n, sel[n])
		}
	}
	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
