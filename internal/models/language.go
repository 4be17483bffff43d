package models

// Language constants
const (
	LangEnglish = "en"
	LangFrench  = "fr"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangEnglish: {
		"notice_invite":     "🚫 Anti-invite: deleted a message from %s in %s",
		"notice_link":       "🔗 Anti-link: deleted a message from %s in %s",
		"notice_caps":       "🔠 Anti-caps: deleted a message (%d%% caps) from %s in %s",
		"notice_spam":       "⛔ Automod spam: %s timed out for %d min.",
		"notice_spam_error": "⚠️ Automod spam error: %v",

		"notice_mute":       "🤐 Timeout: %s %s | %s | by %s",
		"notice_unmute":     "🔈 Un-timeout: %s | %s | by %s",
		"notice_warn":       "⚠️ Warn: %s | %s | by %s",
		"notice_clearwarns": "🧽 Clear warns: %s by %s",

		"reply_mute":           "🤐 %s timed out for %s.",
		"reply_unmute":         "🔈 %s can talk again.",
		"reply_warn":           "⚠️ %s warned. (%s)",
		"reply_clearwarns":     "✅ Warnings cleared.",
		"reply_no_infractions": "No infractions.",
		"reply_remind":         "⏰ OK. I will remind you in %s.",
		"reply_giveaway":       "✅ Giveaway created.",
		"reply_automod":        "✅ Automod setting %s set to %s.",
		"reply_no_permission":  "⛔ You are not allowed to use this command.",
		"reply_failed":         "❌ The action failed: %v",

		"reminder_dm": "⏰ Reminder (%s): %s",
		"warn_dm":     "⚠️ You received a warning.\nReason: %s",

		"giveaway_post":            "🎁 GIVEAWAY\nPrize: %s\nWinners: %d\nEnds: %s\n\nReact with %s to enter!",
		"giveaway_post_button":     "🎁 GIVEAWAY\nPrize: %s\nWinners: %d\nEnds: %s\n\nPress the button to enter!",
		"giveaway_join_button":     "%s Join",
		"giveaway_joined":          "You are in! Good luck.",
		"giveaway_closed":          "This giveaway is over.",
		"giveaway_no_participants": "🎁 Giveaway ended: no participants. (Prize: %s)",
		"giveaway_winners":         "🎉 Giveaway ended! Prize: %s\nWinner(s): %s",

		"cmd_desc_remind":      "Remind me later: <duration> <text>",
		"cmd_desc_giveaway":    "Start a giveaway: <duration> <winners> <prize>",
		"cmd_desc_mute":        "Time out a member: <user> [duration] [reason]",
		"cmd_desc_unmute":      "Lift a timeout: <user> [reason]",
		"cmd_desc_warn":        "Warn a member: <user> [reason]",
		"cmd_desc_infractions": "List infractions: <user>",
		"cmd_desc_clearwarns":  "Clear warnings: <user>",
		"cmd_desc_automod":     "Change an automod setting: <setting> <value>",
	},
	LangFrench: {
		"notice_invite":     "🚫 Anti-invite: supprimé (%s) dans %s",
		"notice_link":       "🔗 Anti-link: supprimé (%s) dans %s",
		"notice_caps":       "🔠 Anti-caps: supprimé (%d%% caps) %s dans %s",
		"notice_spam":       "⛔ Automod spam: %s timeout %d min.",
		"notice_spam_error": "⚠️ Automod spam erreur: %v",

		"notice_mute":       "🤐 Timeout: %s %s | %s | par %s",
		"notice_unmute":     "🔈 Un-timeout: %s | %s | par %s",
		"notice_warn":       "⚠️ Warn: %s | %s | par %s",
		"notice_clearwarns": "🧽 Clear warns: %s par %s",

		"reply_mute":           "🤐 %s réduit au silence pour %s.",
		"reply_unmute":         "🔈 %s peut de nouveau parler.",
		"reply_warn":           "⚠️ %s averti. (%s)",
		"reply_clearwarns":     "✅ Warns supprimés.",
		"reply_no_infractions": "Aucune infraction.",
		"reply_remind":         "⏰ OK. Je te rappellerai dans %s.",
		"reply_giveaway":       "✅ Giveaway créé.",
		"reply_automod":        "✅ Réglage automod %s = %s.",
		"reply_no_permission":  "⛔ Tu n'as pas la permission d'utiliser cette commande.",
		"reply_failed":         "❌ L'action a échoué: %v",

		"reminder_dm": "⏰ Rappel (%s): %s",
		"warn_dm":     "⚠️ Tu as reçu un avertissement.\nRaison: %s",

		"giveaway_post":            "🎁 GIVEAWAY\nPrix: %s\nGagnants: %d\nFin: %s\n\nRéagis avec %s pour participer !",
		"giveaway_post_button":     "🎁 GIVEAWAY\nPrix: %s\nGagnants: %d\nFin: %s\n\nAppuie sur le bouton pour participer !",
		"giveaway_join_button":     "%s Participer",
		"giveaway_joined":          "Tu participes ! Bonne chance.",
		"giveaway_closed":          "Ce giveaway est terminé.",
		"giveaway_no_participants": "🎁 Giveaway terminé: aucun participant. (Prix: %s)",
		"giveaway_winners":         "🎉 Giveaway terminé ! Prix: %s\nGagnant(s): %s",

		"cmd_desc_remind":      "Me rappeler plus tard: <durée> <texte>",
		"cmd_desc_giveaway":    "Lancer un giveaway: <durée> <gagnants> <prix>",
		"cmd_desc_mute":        "Mettre un membre en timeout: <user> [durée] [raison]",
		"cmd_desc_unmute":      "Retirer un timeout: <user> [raison]",
		"cmd_desc_warn":        "Avertir un membre: <user> [raison]",
		"cmd_desc_infractions": "Lister les infractions: <user>",
		"cmd_desc_clearwarns":  "Supprimer les warns: <user>",
		"cmd_desc_automod":     "Modifier un réglage automod: <réglage> <valeur>",
	},
}

func GetTranslation(lang, key string) string {
	// Default to English if language not supported
	if _, ok := Translations[lang]; !ok {
		lang = LangEnglish
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	// Fall back to English if key not found in specified language
	if translation, ok := Translations[LangEnglish][key]; ok {
		return translation
	}

	// Return the key itself if translation not found
	return key
}

// GetLanguageName returns the localized name of a language code
func GetLanguageName(langCode string) string {
	switch langCode {
	case LangEnglish:
		return "English"
	case LangFrench:
		return "Français"
	default:
		return langCode
	}
}
