package banner

import (
	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(lipgloss.Color("#04B575")).
		Bold(true)

	ascii := `
                   __                    __
  ___  ____ _   __/ /_  ___  ____  _____/ /_
 / _ \/ __ \ | / / __ \/ _ \/ __ \/ ___/ __ \
/  __/ / / / |/ / /_/ /  __/ / / / /__/ / / /
\___/_/ /_/|___/_.___/\___/_/ /_/\___/_/ /_/ `

	return "\n" + style.Render(ascii) + "\n"
}
