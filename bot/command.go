package bot

import "strings"

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return ""
	}
	// Allow "/cmd@BotName" variants by stripping "@...".
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// parseToken splits callback data into its action and optional
// argument. Tokens are machine identifiers set when the button was
// rendered; display text never reaches this path.
func parseToken(data string) (action string, arg string) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", ""
	}
	if i := strings.IndexByte(data, ':'); i >= 0 {
		return data[:i], strings.TrimSpace(data[i+1:])
	}
	return data, ""
}
