package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rowguard/rowguard/internal/logging"
	"github.com/rowguard/rowguard/pkg/queryir"
)

// PlanNode is one node of an externally supplied execution plan tree. The
// field names follow the JSON shape of postgres EXPLAIN output.
type PlanNode struct {
	NodeType     string      `json:"Node Type"`
	RelationName string      `json:"Relation Name,omitempty"`
	JoinType     string      `json:"Join Type,omitempty"`
	SortMethod   string      `json:"Sort Method,omitempty"`
	SortKey      []string    `json:"Sort Key,omitempty"`
	SortSpaceKB  int         `json:"Sort Space Used,omitempty"`
	Plans        []*PlanNode `json:"Plans,omitempty"`
}

// Suggestion is one advisory optimization hint. Suggestions never block a
// query.
type Suggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	// nestedLoopJoinLimit is the join count above which nested-loop plans
	// draw a cartesian-join warning.
	nestedLoopJoinLimit = 3

	// externalSortMemoryKB is the sort workspace above which an
	// external-merge sort draws a memory warning.
	externalSortMemoryKB = 4096
)

// Suggest walks the plan tree and collects heuristic optimization hints for
// the query. indexedColumns names the columns known to carry an index. Any
// failure while computing suggestions degrades to an empty list.
func Suggest(root *PlanNode, q *queryir.Query, indexedColumns []string) (suggestions []Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn().Interface("panic", r).Msg("optimization suggestion pass failed; returning none")
			suggestions = nil
		}
	}()

	if root == nil || q == nil {
		return nil
	}

	indexed := make(map[string]struct{}, len(indexedColumns))
	for _, col := range indexedColumns {
		indexed[col] = struct{}{}
	}

	walker := suggestWalker{query: q, indexed: indexed}
	walker.walk(root)
	return walker.suggestions
}

type suggestWalker struct {
	query       *queryir.Query
	indexed     map[string]struct{}
	joinCount   int
	suggestions []Suggestion
}

func (w *suggestWalker) walk(node *PlanNode) {
	if node == nil {
		return
	}

	if strings.Contains(node.NodeType, "Seq Scan") || strings.Contains(node.NodeType, "Full Table Scan") {
		w.suggestSeqScan(node)
	}

	if isJoinNode(node.NodeType) {
		w.joinCount++
		if node.NodeType == "Nested Loop" && w.joinCount > nestedLoopJoinLimit {
			w.add("join", fmt.Sprintf("plan contains %d nested-loop joins; consider reducing join depth or adding join indexes", w.joinCount))
		}
		if node.JoinType == "" {
			w.add("join", fmt.Sprintf("%s node has no explicit join type; the plan may be a cartesian product", node.NodeType))
		}
	}

	if strings.Contains(node.NodeType, "Sort") {
		w.suggestSort(node)
	}

	for _, child := range node.Plans {
		w.walk(child)
	}
}

func (w *suggestWalker) suggestSeqScan(node *PlanNode) {
	fields := referencedFields(w.query)
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)

	target := node.RelationName
	if target == "" {
		target = "the scanned relation"
	}
	if len(names) > 0 {
		w.add("index", fmt.Sprintf("sequential scan over %s; consider indexing: %s", target, strings.Join(names, ", ")))
	} else {
		w.add("index", fmt.Sprintf("sequential scan over %s with no filterable fields", target))
	}
}

func (w *suggestWalker) suggestSort(node *PlanNode) {
	if strings.Contains(strings.ToLower(node.SortMethod), "external merge") && node.SortSpaceKB > externalSortMemoryKB {
		w.add("sort", fmt.Sprintf("external-merge sort used %dkB; raise work memory or pre-sort via an index", node.SortSpaceKB))
	}
	for _, key := range node.SortKey {
		if _, ok := w.indexed[key]; !ok {
			w.add("sort", fmt.Sprintf("sorting on %q without a matching index", key))
		}
	}
}

func (w *suggestWalker) add(suggestionType, message string) {
	w.suggestions = append(w.suggestions, Suggestion{Type: suggestionType, Message: message})
}

func isJoinNode(nodeType string) bool {
	return nodeType == "Nested Loop" || strings.Contains(nodeType, "Join")
}
