package telegram

import (
	"context"
	"strings"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"leviathan/internal/models"
)

var menuCommands = []string{"remind", "giveaway", "mute", "unmute", "warn", "infractions", "clearwarns", "automod"}

func localizedCommands(lang string) []telego.BotCommand {
	commands := make([]telego.BotCommand, 0, len(menuCommands))
	for _, name := range menuCommands {
		commands = append(commands, telego.BotCommand{
			Command:     name,
			Description: models.GetTranslation(lang, "cmd_desc_"+name),
		})
	}
	return commands
}

// SetCommands publishes the command menu, once per supported language plus
// an English default. Only useful when the command prefix is "/".
func (a *Adapter) SetCommands(ctx context.Context) {
	for _, lang := range []string{models.LangEnglish, models.LangFrench} {
		err := a.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     localizedCommands(lang),
			LanguageCode: lang,
		})
		if err != nil {
			a.log.Warn("failed to set bot commands", zap.String("lang", lang), zap.Error(err))
		}
	}

	err := a.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: localizedCommands(models.LangEnglish),
	})
	if err != nil {
		a.log.Warn("failed to set default bot commands", zap.Error(err))
	}
}

// trimCommandTarget drops the "@botname" suffix Telegram appends to commands
// picked from the menu in groups, e.g. "/mute@leviathan_bot 42".
func trimCommandTarget(text, username string) string {
	if username == "" || !strings.HasPrefix(text, "/") {
		return text
	}
	head, rest, _ := strings.Cut(text, " ")
	name, target, found := strings.Cut(head, "@")
	if !found || !strings.EqualFold(target, username) {
		return text
	}
	if rest == "" {
		return name
	}
	return name + " " + rest
}
