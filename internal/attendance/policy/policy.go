package policy

import (
	"strconv"
	"strings"
	"time"
)

// Config is the per-tenant policy value object. It is resolved once per
// request and threaded through every pipeline component; no component reads
// configuration ambiently.
type Config struct {
	// Dedup/debounce tolerances in minutes. Same-type repeats get the wider
	// tolerance; cross-type repeats the narrower one.
	DoublePunchToleranceMinutes int
	CrossTypeToleranceMinutes   int

	// Timing tolerances in minutes
	LateToleranceEntry int
	EarlyToleranceExit int

	// Overtime
	OvertimeMinimumThreshold int // minutes beyond plan before overtime counts
	OvertimeRounding         int // round to nearest multiple, minutes

	// Night window, local wall-clock HH:MM
	NightShiftStart string
	NightShiftEnd   string

	// Rest between sessions, hours
	MinimumRestHours           int
	MinimumRestHoursNightShift int

	// Ambiguous punch handling
	AmbiguousDetectionEnabled bool
	AmbiguousPunchWindowHours int
	EscalationLevel1Hours     int
	EscalationLevel2Hours     int
	EscalationLevel3Hours     int

	// Holiday overtime
	HolidayOvertimeEnabled       bool
	HolidayOvertimeRate          float64
	HolidayOvertimeAsNormalHours bool

	// ISO weekdays 1 (Monday) .. 7 (Sunday)
	WorkingDays []int

	// Breaks
	RequireBreakPunch   bool
	AllowImplicitBreaks bool

	// Wrong-button auto-correction margin around shift boundaries, minutes
	WrongTypeShiftMarginMinutes int

	// Lateness beyond this many hours becomes a partial absence, not LATE
	AbsencePartialHours int

	// IANA timezone for shift boundary comparison
	Timezone string
}

// Default returns the baseline policy applied when a tenant has no
// explicit option rows.
func Default() *Config {
	return &Config{
		DoublePunchToleranceMinutes:  2,
		CrossTypeToleranceMinutes:    2,
		LateToleranceEntry:           5,
		EarlyToleranceExit:           5,
		OvertimeMinimumThreshold:     30,
		OvertimeRounding:             15,
		NightShiftStart:              "22:00",
		NightShiftEnd:                "06:00",
		MinimumRestHours:             11,
		MinimumRestHoursNightShift:   12,
		AmbiguousDetectionEnabled:    true,
		AmbiguousPunchWindowHours:    16,
		EscalationLevel1Hours:        4,
		EscalationLevel2Hours:        12,
		EscalationLevel3Hours:        24,
		HolidayOvertimeEnabled:       true,
		HolidayOvertimeRate:          1.5,
		HolidayOvertimeAsNormalHours: false,
		WorkingDays:                  []int{1, 2, 3, 4, 5},
		RequireBreakPunch:            false,
		AllowImplicitBreaks:          true,
		WrongTypeShiftMarginMinutes:  150,
		AbsencePartialHours:          4,
		Timezone:                     "UTC",
	}
}

// IsWorkingDay reports whether the instant falls on a configured working day
func (c *Config) IsWorkingDay(t time.Time) bool {
	iso := int(t.Weekday())
	if iso == 0 {
		iso = 7 // Sunday
	}
	for _, d := range c.WorkingDays {
		if d == iso {
			return true
		}
	}
	return false
}

// Location resolves the tenant timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EscalationLevelFor returns the escalation level a record pending for the
// given duration should carry. Levels are cumulative thresholds; the result
// never exceeds 3.
func (c *Config) EscalationLevelFor(pending time.Duration) int {
	hours := pending.Hours()
	switch {
	case hours >= float64(c.EscalationLevel3Hours):
		return 3
	case hours >= float64(c.EscalationLevel2Hours):
		return 2
	case hours >= float64(c.EscalationLevel1Hours):
		return 1
	default:
		return 0
	}
}

// Recognized option keys, matching the configuration collaborator's surface
const (
	OptDoublePunchTolerance   = "doublePunchToleranceMinutes"
	OptCrossTypeTolerance     = "crossTypeToleranceMinutes"
	OptLateToleranceEntry     = "lateToleranceEntry"
	OptEarlyToleranceExit     = "earlyToleranceExit"
	OptOvertimeMinThreshold   = "overtimeMinimumThreshold"
	OptOvertimeRounding       = "overtimeRounding"
	OptNightShiftStart        = "nightShiftStart"
	OptNightShiftEnd          = "nightShiftEnd"
	OptMinimumRestHours       = "minimumRestHours"
	OptMinimumRestHoursNight  = "minimumRestHoursNightShift"
	OptAmbiguousDetection     = "ambiguousPunchDetectionEnabled"
	OptAmbiguousWindowHours   = "ambiguousPunchWindowHours"
	OptEscalationLevel1Hours  = "ambiguousPunchEscalationLevel1Hours"
	OptEscalationLevel2Hours  = "ambiguousPunchEscalationLevel2Hours"
	OptEscalationLevel3Hours  = "ambiguousPunchEscalationLevel3Hours"
	OptHolidayOvertimeEnabled = "holidayOvertimeEnabled"
	OptHolidayOvertimeRate    = "holidayOvertimeRate"
	OptHolidayOvertimeNormal  = "holidayOvertimeAsNormalHours"
	OptWorkingDays            = "workingDays"
	OptRequireBreakPunch      = "requireBreakPunch"
	OptAllowImplicitBreaks    = "allowImplicitBreaks"
	OptWrongTypeShiftMargin   = "wrongTypeShiftMarginMinutes"
	OptAbsencePartialHours    = "absencePartialHours"
	OptTimezone               = "timezone"
)

// FromOptions builds a Config from tenant option rows, starting from
// defaults. Unknown keys are ignored; unparseable values keep the default.
func FromOptions(options map[string]string) *Config {
	cfg := Default()

	for key, value := range options {
		switch key {
		case OptDoublePunchTolerance:
			setInt(&cfg.DoublePunchToleranceMinutes, value)
		case OptCrossTypeTolerance:
			setInt(&cfg.CrossTypeToleranceMinutes, value)
		case OptLateToleranceEntry:
			setInt(&cfg.LateToleranceEntry, value)
		case OptEarlyToleranceExit:
			setInt(&cfg.EarlyToleranceExit, value)
		case OptOvertimeMinThreshold:
			setInt(&cfg.OvertimeMinimumThreshold, value)
		case OptOvertimeRounding:
			setInt(&cfg.OvertimeRounding, value)
		case OptNightShiftStart:
			cfg.NightShiftStart = value
		case OptNightShiftEnd:
			cfg.NightShiftEnd = value
		case OptMinimumRestHours:
			setInt(&cfg.MinimumRestHours, value)
		case OptMinimumRestHoursNight:
			setInt(&cfg.MinimumRestHoursNightShift, value)
		case OptAmbiguousDetection:
			setBool(&cfg.AmbiguousDetectionEnabled, value)
		case OptAmbiguousWindowHours:
			setInt(&cfg.AmbiguousPunchWindowHours, value)
		case OptEscalationLevel1Hours:
			setInt(&cfg.EscalationLevel1Hours, value)
		case OptEscalationLevel2Hours:
			setInt(&cfg.EscalationLevel2Hours, value)
		case OptEscalationLevel3Hours:
			setInt(&cfg.EscalationLevel3Hours, value)
		case OptHolidayOvertimeEnabled:
			setBool(&cfg.HolidayOvertimeEnabled, value)
		case OptHolidayOvertimeRate:
			setFloat(&cfg.HolidayOvertimeRate, value)
		case OptHolidayOvertimeNormal:
			setBool(&cfg.HolidayOvertimeAsNormalHours, value)
		case OptWorkingDays:
			if days := parseDayList(value); len(days) > 0 {
				cfg.WorkingDays = days
			}
		case OptRequireBreakPunch:
			setBool(&cfg.RequireBreakPunch, value)
		case OptAllowImplicitBreaks:
			setBool(&cfg.AllowImplicitBreaks, value)
		case OptWrongTypeShiftMargin:
			setInt(&cfg.WrongTypeShiftMarginMinutes, value)
		case OptAbsencePartialHours:
			setInt(&cfg.AbsencePartialHours, value)
		case OptTimezone:
			cfg.Timezone = value
		}
	}

	return cfg
}

func setInt(dst *int, value string) {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		*dst = v
	}
}

func setBool(dst *bool, value string) {
	if v, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		*dst = v
	}
}

func setFloat(dst *float64, value string) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		*dst = v
	}
}

// parseDayList parses "1,2,3,4,5" into ISO weekday numbers
func parseDayList(value string) []int {
	parts := strings.Split(value, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 1 || v > 7 {
			continue
		}
		days = append(days, v)
	}
	return days
}
