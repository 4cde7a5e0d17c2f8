package notifications

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/recurrence"
)

// MissingValuePlaceholder substitutes tokens whose snapshot value is absent.
const MissingValuePlaceholder = "not filled in"

// DefaultTemplateJSON is the built-in reminder template, used whenever a
// user-supplied template is invalid or structurally empty.
const DefaultTemplateJSON = `{"lines":["📅 Subscription renewal reminder","{{name}} renews on {{nextBillingDate}}","Amount: {{price}} {{currency}}","Payment method: {{paymentMethod}}"]}`

// Template is an ordered list of message lines. Each line may contain the
// tokens {{name}}, {{nextBillingDate}}, {{price}}, {{currency}} and
// {{paymentMethod}}.
type Template struct {
	Lines []string `json:"lines"`
}

var templateTokens = []string{"name", "nextBillingDate", "price", "currency", "paymentMethod"}

var tokenPattern = regexp.MustCompile(`\{\{(name|nextBillingDate|price|currency|paymentMethod)\}\}`)

// DefaultTemplate returns the built-in template. The default JSON is a
// compile-time constant, so parsing it cannot fail.
func DefaultTemplate() Template {
	var t Template
	_ = json.Unmarshal([]byte(DefaultTemplateJSON), &t)
	return t
}

// ParseTemplate decodes a persisted template string. Invalid JSON or a
// template with no non-empty lines falls back to the default template; this
// never fails.
func ParseTemplate(s string) Template {
	var t Template
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return DefaultTemplate()
	}
	if !t.valid() {
		return DefaultTemplate()
	}
	return t
}

// NormalizeTemplate validates a user-supplied template string, returning it
// unchanged when structurally valid and the exact default template string
// otherwise.
func NormalizeTemplate(s string) string {
	var t Template
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return DefaultTemplateJSON
	}
	if !t.valid() {
		return DefaultTemplateJSON
	}
	return s
}

func (t Template) valid() bool {
	for _, line := range t.Lines {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}
	return false
}

// Snapshot is the subscription state captured for rendering. Empty fields
// render as the missing-value placeholder.
type Snapshot struct {
	Name            string
	NextBillingDate string
	Price           string
	Currency        string
	PaymentMethod   string
}

// SnapshotOf captures the renderable fields of a subscription.
func SnapshotOf(sub *domain.Subscription) Snapshot {
	snap := Snapshot{
		Name:          sub.Name,
		Price:         sub.Price.String(),
		Currency:      sub.Currency,
		PaymentMethod: sub.PaymentMethod,
	}
	if sub.NextBillingDate != nil {
		snap.NextBillingDate = recurrence.FormatDate(*sub.NextBillingDate)
	}
	return snap
}

func (s Snapshot) value(token string) string {
	var v string
	switch token {
	case "name":
		v = s.Name
	case "nextBillingDate":
		v = s.NextBillingDate
	case "price":
		v = s.Price
	case "currency":
		v = s.Currency
	case "paymentMethod":
		v = s.PaymentMethod
	}
	if v == "" {
		return MissingValuePlaceholder
	}
	return v
}

// Render substitutes snapshot values into the template, drops lines that are
// empty after substitution and joins the rest with newlines.
func Render(t Template, snap Snapshot) string {
	rendered := make([]string, 0, len(t.Lines))
	for _, line := range t.Lines {
		out := tokenPattern.ReplaceAllStringFunc(line, func(m string) string {
			token := tokenPattern.FindStringSubmatch(m)[1]
			return snap.value(token)
		})
		if strings.TrimSpace(out) == "" {
			continue
		}
		rendered = append(rendered, out)
	}
	return strings.Join(rendered, "\n")
}

// Generic fallback patterns matching common renewal phrasing, English and
// Chinese. Used when no template line extracts a name. Names containing the
// delimiter punctuation these patterns key on may fail to extract; that is a
// known limitation.
var fallbackNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)\s+(?:renews|will renew|is due)\b`),
	regexp.MustCompile(`(?:reminder for|renewal of)\s+(.+?)\s*$`),
	regexp.MustCompile(`「(.+?)」`),
	regexp.MustCompile(`^(.+?)\s*(?:将于|即将)`),
}

// ExtractName recovers the subscription display name from a previously
// rendered message. For each template line containing {{name}} it builds a
// pattern from the literal text around the token and tests every line of the
// rendered message; the first capture wins. When no template line matches it
// falls back to the generic patterns. The second return value is false when
// nothing extracts.
func ExtractName(t Template, rendered string) (string, bool) {
	messageLines := strings.Split(rendered, "\n")

	for _, line := range t.Lines {
		if !strings.Contains(line, "{{name}}") {
			continue
		}
		re, err := namePatternFor(line)
		if err != nil {
			continue
		}
		for _, msgLine := range messageLines {
			if m := re.FindStringSubmatch(msgLine); m != nil {
				if name := strings.TrimSpace(m[1]); name != "" {
					return name, true
				}
			}
		}
	}

	for _, re := range fallbackNamePatterns {
		for _, msgLine := range messageLines {
			if m := re.FindStringSubmatch(msgLine); m != nil {
				if name := strings.TrimSpace(m[1]); name != "" {
					return name, true
				}
			}
		}
	}

	return "", false
}

// namePatternFor turns a template line into an anchored regexp capturing the
// name token. Other tokens become non-greedy wildcards.
func namePatternFor(line string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	rest := line
	for {
		loc := tokenPattern.FindStringIndex(rest)
		if loc == nil {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		b.WriteString(regexp.QuoteMeta(rest[:loc[0]]))
		if rest[loc[0]:loc[1]] == "{{name}}" {
			b.WriteString("(.+?)")
		} else {
			b.WriteString(".+?")
		}
		rest = rest[loc[1]:]
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}

var titleCaser = cases.Title(language.English)

// Subject builds the channel-agnostic subject line for a reminder.
func Subject(sub *domain.Subscription) string {
	return fmt.Sprintf("[%s Renewal] %s", titleCaser.String(string(sub.Frequency)), sub.Name)
}
