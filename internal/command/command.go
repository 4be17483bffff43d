// Package command parses prefix commands into typed values and executes them.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"leviathan/internal/duration"
	"leviathan/internal/models"
)

// DefaultMuteDuration applies when !mute is given no duration.
const DefaultMuteDuration = "10m"

var (
	// ErrNotCommand means the text does not start with the prefix.
	ErrNotCommand = errors.New("not a command")
	// ErrUnknownCommand means the verb after the prefix is not one of ours.
	ErrUnknownCommand = errors.New("unknown command")
)

// UsageError reports malformed arguments. Its message is safe to show to the
// user.
type UsageError struct {
	Command string
	Usage   string
	Reason  string
}

func (e *UsageError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("Usage: %s", e.Usage)
	}
	return fmt.Sprintf("%s. Usage: %s", e.Reason, e.Usage)
}

// Command is one parsed invocation.
type Command interface {
	Name() string
}

type RemindCommand struct {
	Duration string
	Seconds  int64
	Content  string
}

type GiveawayCommand struct {
	Duration string
	Seconds  int64
	Winners  int
	Prize    string
}

type MuteCommand struct {
	TargetID int64
	Duration string
	Seconds  int64
	Reason   string
}

type UnmuteCommand struct {
	TargetID int64
	Reason   string
}

type WarnCommand struct {
	TargetID int64
	Reason   string
}

type InfractionsCommand struct {
	TargetID int64
}

type ClearWarnsCommand struct {
	TargetID int64
}

// AutomodCommand changes one field of the guild config. Value holds the
// parsed value: bool, int, float64, *int64 or string depending on Setting.
type AutomodCommand struct {
	Setting string
	Value   any
	Raw     string
}

func (RemindCommand) Name() string      { return "remind" }
func (GiveawayCommand) Name() string    { return "giveaway" }
func (MuteCommand) Name() string        { return "mute" }
func (UnmuteCommand) Name() string      { return "unmute" }
func (WarnCommand) Name() string        { return "warn" }
func (InfractionsCommand) Name() string { return "infractions" }
func (ClearWarnsCommand) Name() string  { return "clearwarns" }
func (AutomodCommand) Name() string     { return "automod" }

var usages = map[string]string{
	"remind":      "remind <duration> <text>",
	"giveaway":    "giveaway <duration> <winners> <prize>",
	"mute":        "mute <@user> [duration] [reason]",
	"unmute":      "unmute <@user> [reason]",
	"warn":        "warn <@user> [reason]",
	"infractions": "infractions <@user>",
	"clearwarns":  "clearwarns <@user>",
	"automod":     "automod <setting> <value>",
}

// Settings accepted by the automod command.
var Settings = []string{
	"enabled", "invite", "link", "caps", "caps_threshold",
	"spam_interval", "spam_burst", "spam_timeout", "modlog", "language",
}

type parser struct {
	prefix string
	verb   string
	args   []string
	rest   string
}

func (p *parser) usage(reason string) *UsageError {
	return &UsageError{Command: p.verb, Usage: p.prefix + usages[p.verb], Reason: reason}
}

// tail returns the raw text after the first n arguments, keeping inner spacing.
func (p *parser) tail(n int) string {
	s := p.rest
	for i := 0; i < n; i++ {
		s = strings.TrimLeft(s, " \t\n")
		idx := strings.IndexAny(s, " \t\n")
		if idx < 0 {
			return ""
		}
		s = s[idx:]
	}
	return strings.TrimSpace(s)
}

// Parse turns text into a Command. It does no I/O.
func Parse(prefix, text string) (Command, error) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return nil, ErrNotCommand
	}
	body := strings.TrimSpace(text[len(prefix):])
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, ErrNotCommand
	}

	p := &parser{
		prefix: prefix,
		verb:   strings.ToLower(fields[0]),
		args:   fields[1:],
		rest:   strings.TrimSpace(body[len(fields[0]):]),
	}

	switch p.verb {
	case "remind":
		return p.remind()
	case "giveaway":
		return p.giveaway()
	case "mute":
		return p.mute()
	case "unmute":
		target, err := p.target()
		if err != nil {
			return nil, err
		}
		return UnmuteCommand{TargetID: target, Reason: p.tail(1)}, nil
	case "warn":
		target, err := p.target()
		if err != nil {
			return nil, err
		}
		return WarnCommand{TargetID: target, Reason: p.tail(1)}, nil
	case "infractions":
		target, err := p.target()
		if err != nil {
			return nil, err
		}
		return InfractionsCommand{TargetID: target}, nil
	case "clearwarns":
		target, err := p.target()
		if err != nil {
			return nil, err
		}
		return ClearWarnsCommand{TargetID: target}, nil
	case "automod":
		return p.automod()
	default:
		return nil, ErrUnknownCommand
	}
}

func (p *parser) duration(raw string) (int64, error) {
	secs, err := duration.Parse(raw)
	if err != nil {
		return 0, p.usage(fmt.Sprintf("Invalid duration %q (e.g. 10m, 2h, 1d)", raw))
	}
	return secs, nil
}

func (p *parser) remind() (Command, error) {
	if len(p.args) < 2 {
		return nil, p.usage("")
	}
	secs, err := p.duration(p.args[0])
	if err != nil {
		return nil, err
	}
	return RemindCommand{Duration: p.args[0], Seconds: secs, Content: p.tail(1)}, nil
}

func (p *parser) giveaway() (Command, error) {
	if len(p.args) < 3 {
		return nil, p.usage("")
	}
	secs, err := p.duration(p.args[0])
	if err != nil {
		return nil, err
	}
	winners, err := strconv.Atoi(p.args[1])
	if err != nil {
		return nil, p.usage(fmt.Sprintf("Invalid winner count %q", p.args[1]))
	}
	return GiveawayCommand{Duration: p.args[0], Seconds: secs, Winners: winners, Prize: p.tail(2)}, nil
}

func (p *parser) mute() (Command, error) {
	target, err := p.target()
	if err != nil {
		return nil, err
	}
	cmd := MuteCommand{TargetID: target, Duration: DefaultMuteDuration}
	if len(p.args) > 1 {
		cmd.Duration = p.args[1]
		cmd.Reason = p.tail(2)
	}
	if cmd.Seconds, err = p.duration(cmd.Duration); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (p *parser) target() (int64, error) {
	if len(p.args) == 0 {
		return 0, p.usage("")
	}
	id, ok := ParseMention(p.args[0])
	if !ok {
		return 0, p.usage(fmt.Sprintf("Unknown user %q", p.args[0]))
	}
	return id, nil
}

func (p *parser) automod() (Command, error) {
	if len(p.args) < 2 {
		return nil, p.usage("Settings: " + strings.Join(Settings, ", "))
	}
	setting := strings.ToLower(p.args[0])
	raw := p.args[1]
	bad := func() error {
		return p.usage(fmt.Sprintf("Invalid value %q for %s", raw, setting))
	}

	cmd := AutomodCommand{Setting: setting, Raw: raw}
	switch setting {
	case "enabled", "invite", "link", "caps":
		b, ok := parseSwitch(raw)
		if !ok {
			return nil, bad()
		}
		cmd.Value = b
	case "caps_threshold", "spam_burst", "spam_timeout":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, bad()
		}
		cmd.Value = n
	case "spam_interval":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, bad()
		}
		cmd.Value = f
	case "modlog":
		if off, ok := parseSwitch(raw); ok && !off {
			cmd.Value = (*int64)(nil)
			break
		}
		id, ok := ParseChannelMention(raw)
		if !ok {
			return nil, bad()
		}
		cmd.Value = &id
	case "language":
		lang := strings.ToLower(raw)
		if lang != models.LangEnglish && lang != models.LangFrench {
			return nil, bad()
		}
		cmd.Value = lang
	default:
		return nil, p.usage(fmt.Sprintf("Unknown setting %q. Settings: %s", setting, strings.Join(Settings, ", ")))
	}
	return cmd, nil
}

func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1", "enable":
		return true, true
	case "off", "false", "no", "0", "disable", "none":
		return false, true
	}
	return false, false
}

// ParseMention accepts <@123>, <@!123> or a bare id.
func ParseMention(s string) (int64, bool) {
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(s[2:len(s)-1], "!")
	}
	return parseID(s)
}

// ParseChannelMention accepts <#123> or a bare id.
func ParseChannelMention(s string) (int64, bool) {
	if strings.HasPrefix(s, "<#") && strings.HasSuffix(s, ">") {
		s = s[2 : len(s)-1]
	}
	return parseID(s)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
