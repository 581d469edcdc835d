package models

type Group struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	LocationID string   `json:"location_id,omitempty"`
	MemberIDs  []string `json:"member_ids,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

func (g *Group) Equal(o *Group) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.ID == o.ID && g.Name == o.Name && g.LocationID == o.LocationID &&
		g.CreatedTS == o.CreatedTS && sameStrings(g.MemberIDs, o.MemberIDs)
}

// sameStrings compares two string slices as sets; member ordering is
// irrelevant for every id list in this package.
func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
