// Package directory computes which peers a user can message: staff see
// each incubated group's project lead plus the other staff, group
// members see the staff.
package directory

import (
	"fmt"
	"sort"
	"strings"

	"marianchat/pkg/logger"
	"marianchat/pkg/models"
	"marianchat/pkg/store"
)

// Peers returns the contact list for viewer, without unread counts and
// in directory order (group leads in group key order, then staff in user
// key order). The viewer is never included.
func Peers(viewer models.User) ([]models.PeerEntry, error) {
	if strings.TrimSpace(viewer.ID) == "" {
		return nil, fmt.Errorf("viewer id is required")
	}
	users, err := store.ListUsers()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var out []models.PeerEntry
	if viewer.Role.IsStaff() {
		groups, err := store.ListGroups()
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			for _, memberID := range g.Members {
				u, ok := byID[memberID]
				if !ok {
					logger.Warn("directory_unknown_member", "group", g.ID, "member", memberID)
					continue
				}
				if u.Role != models.RoleProjectLead || u.ID == viewer.ID {
					continue
				}
				out = append(out, models.PeerEntry{User: u, GroupName: g.Name})
			}
		}
	}

	for _, u := range users {
		if u.ID == viewer.ID || !u.Role.IsStaff() {
			continue
		}
		out = append(out, models.PeerEntry{User: u})
	}
	return out, nil
}

// ApplyUnread annotates entries with the viewer's unseen message counts,
// keyed by sender id.
func ApplyUnread(entries []models.PeerEntry, counts map[string]int) {
	for i := range entries {
		entries[i].Unread = counts[entries[i].ID]
	}
}

// SortByUnread orders entries by unread count descending. The sort is
// stable, so peers with equal counts keep their directory order.
func SortByUnread(entries []models.PeerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Unread > entries[j].Unread
	})
}
