package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"meeting-scheduler/internal/app"
	"meeting-scheduler/internal/availability"
)

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Compute open slots offline, without a database.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Required: true, Usage: "Day to compute (yyyy-mm-dd)."},
			&cli.StringSliceFlag{Name: "rule", Usage: "Working hours as weekday=start-end (e.g. 3=09:00-17:00). Defaults to 09:00-17:00 daily."},
			&cli.StringSliceFlag{Name: "booking", Usage: "Booked span as start-end (e.g. 10:00-10:30)."},
			&cli.IntFlag{Name: "buffer", Value: 15, Usage: "Buffer minutes around bookings."},
			&cli.IntFlag{Name: "slot-length", Value: availability.DefaultSlotLength, Usage: "Slot length in minutes."},
		},
		Action: func(c *cli.Context) error {
			day, err := availability.ParseDate(c.String("date"))
			if err != nil {
				return err
			}

			rules := app.DefaultRules()
			if raw := c.StringSlice("rule"); len(raw) > 0 {
				rules = rules[:0]
				for _, r := range raw {
					rule, err := parseRule(r)
					if err != nil {
						return err
					}
					rules = append(rules, rule)
				}
			}

			var bookings []availability.Interval
			for _, b := range c.StringSlice("booking") {
				iv, err := parseInterval(b)
				if err != nil {
					return err
				}
				bookings = append(bookings, iv)
			}

			for _, m := range availability.OpenSlots(day, rules, bookings, c.Int("buffer"), c.Int("slot-length")) {
				fmt.Fprintln(c.App.Writer, availability.FormatMinutes(m))
			}
			return nil
		},
	}
}

// parseMinutes accepts HH:MM or a plain minute count.
func parseMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if h, m, ok := strings.Cut(s, ":"); ok {
		hh, err1 := strconv.Atoi(h)
		mm, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil || hh < 0 || mm < 0 || mm > 59 || hh*60+mm > 24*60 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		return hh*60 + mm, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid minutes %q", s)
	}
	return n, nil
}

// parseRule reads weekday=start-end, e.g. 3=09:00-17:00.
func parseRule(s string) (availability.Rule, error) {
	day, span, ok := strings.Cut(s, "=")
	if !ok {
		return availability.Rule{}, fmt.Errorf("rule %q: want weekday=start-end", s)
	}
	wd, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || wd < 0 || wd > 6 {
		return availability.Rule{}, fmt.Errorf("rule %q: weekday must be 0..6", s)
	}
	iv, err := parseInterval(span)
	if err != nil {
		return availability.Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	return availability.Rule{Weekday: wd, StartMin: iv.StartMin, EndMin: iv.EndMin}, nil
}

func parseInterval(s string) (availability.Interval, error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return availability.Interval{}, fmt.Errorf("span %q: want start-end", s)
	}
	start, err := parseMinutes(a)
	if err != nil {
		return availability.Interval{}, fmt.Errorf("span %q: %w", s, err)
	}
	end, err := parseMinutes(b)
	if err != nil {
		return availability.Interval{}, fmt.Errorf("span %q: %w", s, err)
	}
	if end <= start {
		return availability.Interval{}, fmt.Errorf("span %q: end must be after start", s)
	}
	return availability.Interval{StartMin: start, EndMin: end}, nil
}
