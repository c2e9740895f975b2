package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	MaxParticipants    int `yaml:"max_participants"`
	Characters         int `yaml:"characters"`
	KeyframeEveryTicks int `yaml:"keyframe_every_ticks"`
	EndLobbyDelayTicks int `yaml:"end_lobby_delay_ticks"`
	ClientQueue        int `yaml:"client_queue"`

	Arena  Arena  `yaml:"arena"`
	Vitals Vitals `yaml:"vitals"`
	Combat Combat `yaml:"combat"`
	Items  Items  `yaml:"items"`
	Boards Boards `yaml:"boards"`
}

type Arena struct {
	Radius float64 `yaml:"radius"`
}

type Vitals struct {
	MaxHealth       int `yaml:"max_health"`
	MaxStamina      int `yaml:"max_stamina"`
	StaminaRegen    int `yaml:"stamina_regen"`
	RegenEveryTicks int `yaml:"regen_every_ticks"`
	ReviveHealth    int `yaml:"revive_health"`
}

type Combat struct {
	Damage        int     `yaml:"damage"`
	StaminaCost   int     `yaml:"stamina_cost"`
	CooldownTicks int     `yaml:"cooldown_ticks"`
	WindowTicks   int     `yaml:"window_ticks"`
	Range         float64 `yaml:"range"`
	Reach         float64 `yaml:"reach"`
}

type Items struct {
	InventorySlots int         `yaml:"inventory_slots"`
	World          []WorldItem `yaml:"world"`
}

type WorldItem struct {
	Item string  `yaml:"item"`
	X    float64 `yaml:"x"`
	Z    float64 `yaml:"z"`
}

type Boards struct {
	Survivor []Task `yaml:"survivor"`
	Hunter   []Task `yaml:"hunter"`
}

type Task struct {
	Description string `yaml:"description"`
	Required    int    `yaml:"required"`
}

// Defaults is the shipped match tuning; configs/tuning.yaml mirrors it.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         10,
		MaxParticipants:    5,
		Characters:         4,
		KeyframeEveryTicks: 50,
		EndLobbyDelayTicks: 100,
		ClientQueue:        256,
		Arena:              Arena{Radius: 48},
		Vitals: Vitals{
			MaxHealth:       100,
			MaxStamina:      100,
			StaminaRegen:    5,
			RegenEveryTicks: 10,
			ReviveHealth:    50,
		},
		Combat: Combat{
			Damage:        40,
			StaminaCost:   30,
			CooldownTicks: 20,
			WindowTicks:   5,
			Range:         2.5,
			Reach:         2.5,
		},
		Items: Items{
			InventorySlots: 3,
			World: []WorldItem{
				{Item: "LANTERN", X: 6, Z: -4},
				{Item: "MEDKIT", X: -11, Z: 3},
				{Item: "TOOLKIT", X: 2, Z: 14},
			},
		},
		Boards: Boards{
			Survivor: []Task{
				{Description: "repair the generators", Required: 3},
				{Description: "gather fuel cans", Required: 5},
				{Description: "open the gate", Required: 1},
			},
			Hunter: []Task{
				{Description: "snuff the boundary lanterns", Required: 4},
				{Description: "complete the rite", Required: 1},
			},
		},
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
