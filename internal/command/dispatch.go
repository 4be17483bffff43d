package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"leviathan/internal/models"
	"leviathan/internal/moderation"
	"leviathan/internal/service"
)

// InfractionTimeLayout renders infraction dates in listings.
const InfractionTimeLayout = "2006-01-02 15:04:05"

var ErrPermissionDenied = errors.New("permission denied")

// Invocation is the context a command was issued in.
type Invocation struct {
	GuildID   int64
	ChannelID int64
	AuthorID  int64

	CanModerate    bool
	CanManageGuild bool
}

// Reply is what the bot answers in the invocation channel. An empty Text
// means no answer.
type Reply struct {
	Text string
}

// ConfigStore reads and updates guild configs.
type ConfigStore interface {
	GetConfig(ctx context.Context, guildID int64) (models.GuildConfig, error)
	UpdateConfig(ctx context.Context, guildID int64, mutate func(*models.GuildConfig) error) (models.GuildConfig, error)
}

type Dispatcher struct {
	Logger    *zap.Logger
	Configs   ConfigStore
	Moderator *moderation.Moderator
}

func NewDispatcher(logger *zap.Logger, configs ConfigStore, mod *moderation.Moderator) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{Logger: logger, Configs: configs, Moderator: mod}
}

// Dispatch checks privileges and executes cmd. The returned Reply is always
// suitable to send, including on error.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation, cmd Command) (Reply, error) {
	lang := models.LangEnglish
	if cfg, err := d.Configs.GetConfig(ctx, inv.GuildID); err == nil {
		lang = cfg.Language
	}
	tr := func(key string, args ...any) string {
		return fmt.Sprintf(models.GetTranslation(lang, key), args...)
	}

	if !allowed(inv, cmd) {
		return Reply{Text: tr("reply_no_permission")}, ErrPermissionDenied
	}

	text, err := d.execute(ctx, inv, cmd, tr)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return Reply{Text: tr("reply_failed", verr)}, err
		}
		d.Logger.Warn("command failed", zap.String("command", cmd.Name()), zap.Int64("guild", inv.GuildID), zap.Error(err))
		return Reply{Text: tr("reply_failed", err)}, err
	}
	return Reply{Text: text}, nil
}

func allowed(inv Invocation, cmd Command) bool {
	switch cmd.(type) {
	case MuteCommand, UnmuteCommand, WarnCommand, InfractionsCommand, ClearWarnsCommand:
		return inv.CanModerate
	case GiveawayCommand, AutomodCommand:
		return inv.CanManageGuild
	default:
		return true
	}
}

func (d *Dispatcher) execute(ctx context.Context, inv Invocation, cmd Command, tr func(string, ...any) string) (string, error) {
	mod := d.Moderator
	mention := mod.Platform.Mention

	switch c := cmd.(type) {
	case RemindCommand:
		if _, err := mod.Remind(ctx, inv.AuthorID, time.Duration(c.Seconds)*time.Second, c.Content); err != nil {
			return "", err
		}
		return tr("reply_remind", c.Duration), nil

	case GiveawayCommand:
		_, err := mod.StartGiveaway(ctx, moderation.GiveawayRequest{
			GuildID:   inv.GuildID,
			ChannelID: inv.ChannelID,
			Duration:  time.Duration(c.Seconds) * time.Second,
			Winners:   c.Winners,
			Prize:     c.Prize,
		})
		if err != nil {
			return "", err
		}
		return tr("reply_giveaway"), nil

	case MuteCommand:
		if err := mod.Mute(ctx, inv.GuildID, c.TargetID, mod.UserActor(inv.AuthorID), time.Duration(c.Seconds)*time.Second, c.Duration, c.Reason); err != nil {
			return "", err
		}
		return tr("reply_mute", mention(c.TargetID), c.Duration), nil

	case UnmuteCommand:
		if err := mod.Unmute(ctx, inv.GuildID, c.TargetID, mod.UserActor(inv.AuthorID), c.Reason); err != nil {
			return "", err
		}
		return tr("reply_unmute", mention(c.TargetID)), nil

	case WarnCommand:
		if err := mod.Warn(ctx, inv.GuildID, c.TargetID, mod.UserActor(inv.AuthorID), c.Reason); err != nil {
			return "", err
		}
		reason := c.Reason
		if reason == "" {
			reason = moderation.DefaultReason
		}
		return tr("reply_warn", mention(c.TargetID), reason), nil

	case InfractionsCommand:
		infs, err := mod.Infractions(ctx, inv.GuildID, c.TargetID, service.DefaultInfractionLimit)
		if err != nil {
			return "", err
		}
		if len(infs) == 0 {
			return tr("reply_no_infractions"), nil
		}
		return FormatInfractions(infs), nil

	case ClearWarnsCommand:
		if _, err := mod.ClearWarns(ctx, inv.GuildID, c.TargetID, mod.UserActor(inv.AuthorID)); err != nil {
			return "", err
		}
		return tr("reply_clearwarns"), nil

	case AutomodCommand:
		if _, err := d.Configs.UpdateConfig(ctx, inv.GuildID, func(cfg *models.GuildConfig) error {
			return ApplySetting(cfg, c.Setting, c.Value)
		}); err != nil {
			return "", err
		}
		return tr("reply_automod", c.Setting, c.Raw), nil
	}

	return "", fmt.Errorf("unhandled command %T", cmd)
}

// ApplySetting writes one automod setting onto cfg.
func ApplySetting(cfg *models.GuildConfig, setting string, value any) error {
	var ok bool
	switch setting {
	case "enabled":
		cfg.AutomodEnabled, ok = value.(bool)
	case "invite":
		cfg.AntiInvite, ok = value.(bool)
	case "link":
		cfg.AntiLink, ok = value.(bool)
	case "caps":
		cfg.AntiCaps, ok = value.(bool)
	case "caps_threshold":
		cfg.CapsThreshold, ok = value.(int)
	case "spam_interval":
		cfg.SpamIntervalSec, ok = value.(float64)
	case "spam_burst":
		cfg.SpamBurst, ok = value.(int)
	case "spam_timeout":
		cfg.SpamTimeoutMin, ok = value.(int)
	case "modlog":
		cfg.ModlogChannelID, ok = value.(*int64)
	case "language":
		cfg.Language, ok = value.(string)
	default:
		return &service.ValidationError{Field: setting, Reason: "unknown setting"}
	}
	if !ok {
		return &service.ValidationError{Field: setting, Reason: fmt.Sprintf("unexpected value type %T", value)}
	}
	return nil
}

// FormatInfractions renders a listing as a code block, newest first.
func FormatInfractions(infs []models.Infraction) string {
	var b strings.Builder
	b.WriteString("```")
	for i, inf := range infs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "#%d • %s • %s • %s", inf.ID, inf.Kind, inf.CreatedAt.UTC().Format(InfractionTimeLayout), inf.Reason)
	}
	b.WriteString("```")
	return b.String()
}
