package main

import "time"

// Stats represents current server stats for the dashboard & state API.
type Stats struct {
	KnockHits     int64  `json:"knock_hits"`
	NormalRoutes  int64  `json:"normal_routes"`
	SniffTimeouts int64  `json:"sniff_timeouts"`
	Rejected      int64  `json:"rejected"`
	ActivePipes   int64  `json:"active_pipes"`
	TotalPipes    int64  `json:"total_pipes"`
	Now           string `json:"now"`
}

func collectStats(s StateStore) Stats {
	c := s.getStats()
	return Stats{
		KnockHits:     c.KnockHits,
		NormalRoutes:  c.NormalRoutes,
		SniffTimeouts: c.SniffTimeouts,
		Rejected:      c.Rejected,
		ActivePipes:   c.ActivePipes,
		TotalPipes:    c.TotalPipes,
		Now:           time.Now().UTC().Format(time.RFC3339),
	}
}

// ToTemplateMap returns a map suited for html/template rendering with expected capitalized keys.
func (s Stats) ToTemplateMap() map[string]any {
	return map[string]any{
		"KnockHits":     s.KnockHits,
		"NormalRoutes":  s.NormalRoutes,
		"SniffTimeouts": s.SniffTimeouts,
		"Rejected":      s.Rejected,
		"ActivePipes":   s.ActivePipes,
		"TotalPipes":    s.TotalPipes,
	}
}
