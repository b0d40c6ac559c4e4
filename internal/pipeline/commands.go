package pipeline

import "github.com/good-yellow-bee/fieldsense/internal/models"

// RainBuzzer is the command sent to field hardware while rain is imminent.
var RainBuzzer = models.DeviceCommand{
	Type:    "buzzer",
	Mode:    "red_warning",
	State:   models.StateOn,
	Pattern: "rapid_beep",
}

// BuildDeviceCommands derives the hardware commands for a processed reading.
// The buzzer depends only on the weather snapshot, so replaying a reading whose
// alerts were suppressed still yields the same commands.
func BuildDeviceCommands(accepted []*models.AlertEvent, snapshot models.WeatherSnapshot) []models.DeviceCommand {
	commands := []models.DeviceCommand{}
	if snapshot.RainImminent {
		commands = append(commands, RainBuzzer)
	}
	return commands
}
