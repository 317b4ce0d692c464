package tracker

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Snapshot is one fetched view of the board: every column with its
// reported count and every issue with its current status. Snapshots are
// value objects; nothing mutates them after Decode.
type Snapshot struct {
	Columns []Column
	Issues  []Issue
}

type Column struct {
	Name      string
	TaskCount int
	StatusIDs []string
}

type Issue struct {
	Key         string
	Summary     string
	StatusID    string
	Assignee    string
	Description string
}

// Column returns the column with the given name, or false if the board
// has no such column.
func (s *Snapshot) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Contains reports whether the column's status set includes statusID,
// i.e. whether an issue with that status currently sits in the column.
func (c Column) Contains(statusID string) bool {
	for _, id := range c.StatusIDs {
		if id == statusID {
			return true
		}
	}
	return false
}

// MemberIssues returns all issues of the snapshot whose status belongs to
// the column's status set, in snapshot order.
func (s *Snapshot) MemberIssues(col Column) []Issue {
	var out []Issue
	for _, is := range s.Issues {
		if col.Contains(is.StatusID) {
			out = append(out, is)
		}
	}
	return out
}

// IssueByKey looks an issue up by its tracker key.
func (s *Snapshot) IssueByKey(key string) (Issue, bool) {
	for _, is := range s.Issues {
		if is.Key == key {
			return is, true
		}
	}
	return Issue{}, false
}

// Wire shape of the board API response. statisticsFieldValue arrives as a
// string-encoded integer and statusId values are numbers upstream, so both
// are normalized here.
type boardPayload struct {
	ColumnsData struct {
		Columns []struct {
			Name                 string        `json:"name"`
			StatisticsFieldValue string        `json:"statisticsFieldValue"`
			StatusIDs            []json.Number `json:"statusIds"`
		} `json:"columns"`
	} `json:"columnsData"`
	IssuesData struct {
		Issues []struct {
			Key          string      `json:"key"`
			Summary      string      `json:"summary"`
			StatusID     json.Number `json:"statusId"`
			AssigneeName string      `json:"assigneeName"`
			Description  string      `json:"description"`
		} `json:"issues"`
	} `json:"issuesData"`
}

// Decode parses a board API response body into a Snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var p boardPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse board payload: %w", err)
	}

	snap := &Snapshot{}
	for _, c := range p.ColumnsData.Columns {
		count, err := strconv.Atoi(c.StatisticsFieldValue)
		if err != nil {
			return nil, fmt.Errorf("column %q: bad statisticsFieldValue %q: %w", c.Name, c.StatisticsFieldValue, err)
		}
		ids := make([]string, len(c.StatusIDs))
		for i, id := range c.StatusIDs {
			ids[i] = id.String()
		}
		snap.Columns = append(snap.Columns, Column{
			Name:      c.Name,
			TaskCount: count,
			StatusIDs: ids,
		})
	}
	for _, is := range p.IssuesData.Issues {
		snap.Issues = append(snap.Issues, Issue{
			Key:         is.Key,
			Summary:     is.Summary,
			StatusID:    is.StatusID.String(),
			Assignee:    is.AssigneeName,
			Description: is.Description,
		})
	}
	return snap, nil
}
