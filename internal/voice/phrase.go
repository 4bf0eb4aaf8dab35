package voice

import (
	"regexp"
	"strings"

	"github.com/nerrad567/gray-logic-lights/internal/device"
)

// phrase matches "light on", "Lights, OFF!" and the like. The word
// boundaries keep "flight on" and "light only" out.
var phrase = regexp.MustCompile(`(?i)\blights?[\s.,;!?]*(on|off)\b`)

// Parse returns the power state named by the last light command in
// text. Later words win because a transcript grows in speaking order.
func Parse(text string) (device.PowerState, bool) {
	matches := phrase.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	if strings.EqualFold(matches[len(matches)-1][1], "on") {
		return device.PowerOn, true
	}
	return device.PowerOff, true
}
