package referral

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"go.uber.org/zap"
)

// Mismatch is a stored value that disagrees with a recount from sponsor pointers
type Mismatch struct {
	UserID   uuid.UUID `json:"user_id"`
	Field    string    `json:"field"`
	Stored   int       `json:"stored"`
	Expected int       `json:"expected"`
}

// ReconcileReport lists every inconsistency found in the graph
type ReconcileReport struct {
	Users      int         `json:"users"`
	Mismatches []Mismatch  `json:"mismatches"`
	Cycles     []uuid.UUID `json:"cycles"`
	Orphans    []uuid.UUID `json:"orphans"`
}

// Healthy reports whether nothing was found
func (r *ReconcileReport) Healthy() bool {
	return len(r.Mismatches) == 0 && len(r.Cycles) == 0 && len(r.Orphans) == 0
}

type node struct {
	sponsor  *uuid.UUID
	directs  int
	team     int
	children []uuid.UUID
}

// Reconcile recounts direct and team sizes from the sponsor pointers, checks
// the closure rows and looks for cycles. Any finding means an earlier write
// bypassed the store; each one is logged as corruption and nothing is repaired.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	db := s.runner.DB(ctx)

	var users []models.User
	if err := db.Select("id", "sponsor_id", "direct_referrals_count", "team_size").Find(&users).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	var paths []models.ReferralPath
	if err := db.Find(&paths).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	report := &ReconcileReport{Users: len(users)}
	nodes := make(map[uuid.UUID]*node, len(users))
	for i := range users {
		nodes[users[i].ID] = &node{sponsor: users[i].SponsorID, directs: users[i].DirectReferralsCount, team: users[i].TeamSize}
	}
	var roots []uuid.UUID
	for id, n := range nodes {
		if n.sponsor == nil {
			roots = append(roots, id)
			continue
		}
		parent, ok := nodes[*n.sponsor]
		if !ok {
			report.Orphans = append(report.Orphans, id)
			continue
		}
		parent.children = append(parent.children, id)
	}

	// post-order team sizes from every root; nodes never reached sit on a cycle
	expectedTeam := make(map[uuid.UUID]int, len(nodes))
	type frame struct {
		id      uuid.UUID
		visited bool
	}
	for _, root := range roots {
		stack := []frame{{id: root}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.visited {
				total := 0
				for _, c := range nodes[top.id].children {
					total += 1 + expectedTeam[c]
				}
				expectedTeam[top.id] = total
				continue
			}
			stack = append(stack, frame{id: top.id, visited: true})
			for _, c := range nodes[top.id].children {
				stack = append(stack, frame{id: c})
			}
		}
	}

	storedPaths := make(map[uuid.UUID]map[uuid.UUID]int)
	for _, p := range paths {
		m, ok := storedPaths[p.DescendantID]
		if !ok {
			m = make(map[uuid.UUID]int)
			storedPaths[p.DescendantID] = m
		}
		m[p.AncestorID] = p.Depth
	}

	for id, n := range nodes {
		team, reached := expectedTeam[id]
		if !reached {
			if !containsID(report.Orphans, id) {
				if leadsToMissingSponsor(nodes, id) {
					report.Orphans = append(report.Orphans, id)
				} else {
					report.Cycles = append(report.Cycles, id)
				}
			}
			continue
		}
		if n.directs != len(n.children) {
			report.Mismatches = append(report.Mismatches, Mismatch{UserID: id, Field: "direct_referrals_count", Stored: n.directs, Expected: len(n.children)})
		}
		if n.team != team {
			report.Mismatches = append(report.Mismatches, Mismatch{UserID: id, Field: "team_size", Stored: n.team, Expected: team})
		}

		// walk the sponsor chain and compare with the closure rows
		expected := make(map[uuid.UUID]int)
		depth := 0
		for cur := n.sponsor; cur != nil; cur = nodes[*cur].sponsor {
			depth++
			expected[*cur] = depth
		}
		stored := storedPaths[id]
		if !samePaths(expected, stored) {
			report.Mismatches = append(report.Mismatches, Mismatch{UserID: id, Field: "referral_paths", Stored: len(stored), Expected: len(expected)})
		}
	}

	for _, m := range report.Mismatches {
		s.logger.Error("referral graph corruption: aggregate mismatch",
			zap.String("user_id", m.UserID.String()),
			zap.String("field", m.Field),
			zap.Int("stored", m.Stored),
			zap.Int("expected", m.Expected))
	}
	for _, id := range report.Cycles {
		s.logger.Error("referral graph corruption: node on a sponsor cycle", zap.String("user_id", id.String()))
	}
	for _, id := range report.Orphans {
		s.logger.Error("referral graph corruption: sponsor does not exist", zap.String("user_id", id.String()))
	}
	if report.Healthy() {
		s.logger.Info("referral graph reconciled", zap.Int("users", report.Users))
	}
	return report, nil
}

func samePaths(expected, stored map[uuid.UUID]int) bool {
	if len(expected) != len(stored) {
		return false
	}
	for id, depth := range expected {
		if stored[id] != depth {
			return false
		}
	}
	return true
}

// leadsToMissingSponsor walks the sponsor pointers from id and reports
// whether they end at a sponsor that does not exist rather than looping.
func leadsToMissingSponsor(nodes map[uuid.UUID]*node, id uuid.UUID) bool {
	seen := map[uuid.UUID]bool{id: true}
	cur := nodes[id].sponsor
	for cur != nil {
		n, ok := nodes[*cur]
		if !ok {
			return true
		}
		if seen[*cur] {
			return false
		}
		seen[*cur] = true
		cur = n.sponsor
	}
	return false
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// String renders a one-line summary for operator output
func (r *ReconcileReport) String() string {
	return fmt.Sprintf("users=%d mismatches=%d cycles=%d orphans=%d", r.Users, len(r.Mismatches), len(r.Cycles), len(r.Orphans))
}
