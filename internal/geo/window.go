package geo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ClockWindow интервал времени суток в минутах от полуночи. End < Start означает переход через полночь.
type ClockWindow struct {
	Start int
	End   int
}

// ParseClock разбирает строку вида "HH:MM".
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("geo: некорректное время %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseWindow разбирает "HH:MM-HH:MM".
func ParseWindow(s string) (ClockWindow, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return ClockWindow{}, fmt.Errorf("geo: некорректный интервал %q", s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return ClockWindow{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return ClockWindow{}, err
	}
	return ClockWindow{Start: start, End: end}, nil
}

// Contains сообщает, попадает ли момент в интервал. Начало включено, конец нет.
func (w ClockWindow) Contains(t time.Time) bool {
	t = t.UTC()
	m := t.Hour()*60 + t.Minute()
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

// Schedule расписание доступности: день недели ("mon".."sun") -> интервалы "HH:MM-HH:MM".
type Schedule map[string][]string

var weekdayKeys = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseSchedule разбирает JSON расписания и проверяет каждый интервал.
// Пустой JSON, {} и дни без интервалов дают nil: расписание не задано.
func ParseSchedule(raw []byte) (Schedule, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var s Schedule
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("geo: некорректное расписание: %w", err)
	}
	for day, windows := range s {
		if !isWeekdayKey(day) {
			return nil, fmt.Errorf("geo: неизвестный день недели %q", day)
		}
		for _, w := range windows {
			if _, err := ParseWindow(w); err != nil {
				return nil, err
			}
		}
		if len(windows) == 0 {
			delete(s, day)
		}
	}
	if len(s) == 0 {
		return nil, nil
	}
	return s, nil
}

func isWeekdayKey(day string) bool {
	for _, k := range weekdayKeys {
		if k == day {
			return true
		}
	}
	return false
}

// Allows сообщает, доступен ли исполнитель в момент t. Интервал через полночь
// относится к дню своего начала.
func (s Schedule) Allows(t time.Time) bool {
	t = t.UTC()
	minute := t.Hour()*60 + t.Minute()
	today := weekdayKeys[t.Weekday()]
	yesterday := weekdayKeys[(t.Weekday()+6)%7]

	for _, raw := range s[today] {
		w, err := ParseWindow(raw)
		if err != nil {
			continue
		}
		if w.Start < w.End && minute >= w.Start && minute < w.End {
			return true
		}
		if w.Start > w.End && minute >= w.Start {
			return true
		}
	}
	for _, raw := range s[yesterday] {
		w, err := ParseWindow(raw)
		if err != nil {
			continue
		}
		if w.Start > w.End && minute < w.End {
			return true
		}
	}
	return false
}
