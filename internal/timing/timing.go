// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package timing aggregates per-rule timing reports produced by the analyzer
// into per-repository totals and cross-repository per-file averages.
package timing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/apex/log"
	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"
)

var (
	// ErrNotJSON means the report could not be parsed at all.
	ErrNotJSON = errors.New("report is not valid JSON")
	// ErrNoTiming means the report has no "time" section; the analyzer was
	// run without timing enabled.
	ErrNoTiming = errors.New("report has no timing data; rerun the analyzer with timing enabled")
	// ErrMalformed means the "time" section does not have the expected shape.
	ErrMalformed = errors.New("malformed timing data")
)

// RuleTime is a rule id with a duration in seconds.
type RuleTime struct {
	Rule    string
	Seconds float64
}

// RepoTimes is the per-rule total time of one repository.
type RepoTimes struct {
	Repo  string
	Rules []RuleTime
}

type total struct {
	sum   float64
	files int
}

// Aggregator accumulates reports. The zero value is ready to use.
type Aggregator struct {
	repos  map[string][]RuleTime
	order  []string
	totals map[string]total
}

// Add folds one report into the aggregate. Adding the same repo twice
// replaces its per-repository totals; the global averages keep both. A report
// that fails validation leaves the aggregate untouched.
func (a *Aggregator) Add(repo string, report []byte) error {
	if !gjson.ValidBytes(report) {
		return fmt.Errorf("%s: %w", repo, ErrNotJSON)
	}

	t := gjson.GetBytes(report, "time")
	if !t.Exists() {
		return fmt.Errorf("%s: %w", repo, ErrNoTiming)
	}

	rules := t.Get("rules")
	if !rules.IsArray() {
		return fmt.Errorf("%s: %w: time.rules is not a list", repo, ErrMalformed)
	}
	var ids []string
	for i, r := range rules.Array() {
		id := r.Get("id")
		if id.Type != gjson.String {
			return fmt.Errorf("%s: %w: time.rules.%d has no id", repo, ErrMalformed, i)
		}
		ids = append(ids, id.String())
	}

	targets := t.Get("targets")
	if !targets.IsArray() {
		return fmt.Errorf("%s: %w: time.targets is not a list", repo, ErrMalformed)
	}

	perRule := make([]float64, len(ids))
	local := map[string]total{}
	for n, target := range targets.Array() {
		times := target.Get("parse_times")
		if !times.IsArray() {
			return fmt.Errorf("%s: %w: time.targets.%d.parse_times is not a list", repo, ErrMalformed, n)
		}
		values := times.Array()
		if len(values) > len(ids) {
			return fmt.Errorf("%s: %w: target %d has %d times for %d rules", repo, ErrMalformed, n, len(values), len(ids))
		}
		for i, v := range values {
			if v.Type != gjson.Number {
				return fmt.Errorf("%s: %w: target %d time %d is not a number", repo, ErrMalformed, n, i)
			}
			secs := v.Float()
			perRule[i] += secs
			if secs > 0 {
				tt := local[ids[i]]
				tt.sum += secs
				tt.files++
				local[ids[i]] = tt
			}
		}
	}

	byRule := map[string]float64{}
	for i, id := range ids {
		byRule[id] += perRule[i]
	}

	if a.repos == nil {
		a.repos = map[string][]RuleTime{}
		a.totals = map[string]total{}
	}
	if _, ok := a.repos[repo]; !ok {
		a.order = append(a.order, repo)
	}
	a.repos[repo] = sortedTimes(byRule)

	for id, tt := range local {
		g := a.totals[id]
		g.sum += tt.sum
		g.files += tt.files
		a.totals[id] = g
	}

	log.Debugf("added timing for %s: %d rules, %d targets", repo, len(ids), len(targets.Array()))
	return nil
}

// Report snapshots the aggregate.
func (a *Aggregator) Report() Report {
	r := Report{}
	for _, repo := range a.order {
		r.Repositories = append(r.Repositories, RepoTimes{Repo: repo, Rules: a.repos[repo]})
	}

	avg := make(map[string]float64, len(a.totals))
	for id, tt := range a.totals {
		avg[id] = tt.sum / float64(tt.files)
	}
	r.Averages = sortedTimes(avg)
	return r
}

// sortedTimes orders by descending time, then rule id.
func sortedTimes(m map[string]float64) []RuleTime {
	out := make([]RuleTime, 0, len(m))
	for id, secs := range m {
		out = append(out, RuleTime{Rule: id, Seconds: secs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

// Report is the aggregate in output order.
type Report struct {
	// Repositories are in the order they were first added.
	Repositories []RepoTimes
	// Averages is the mean non-zero per-file time of each rule.
	Averages []RuleTime
}

// MarshalJSON writes objects whose key order follows the slices.
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"repository_to_times_per_rule":{`)
	for i, repo := range r.Repositories {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, repo.Repo); err != nil {
			return nil, err
		}
		if err := writeTimes(&buf, repo.Rules); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`},"time_per_rule_average":`)
	if err := writeTimes(&buf, r.Averages); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteFile replaces path with the JSON report.
func (r Report) WriteFile(path string) error {
	data, err := r.MarshalJSON()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeTimes(buf *bytes.Buffer, times []RuleTime) error {
	buf.WriteByte('{')
	for i, rt := range times {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(buf, rt.Rule); err != nil {
			return err
		}
		v, err := json.Marshal(rt.Seconds)
		if err != nil {
			return err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}
