package rowstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowstore_statements_total",
		Help: "Cumulative number of statements executed, by operation.",
	}, []string{"op"})
	prunedColumnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowstore_pruned_columns_total",
		Help: "Cumulative number of filter columns dropped because the table lacks them.",
	}, []string{"table"})
	addedColumnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowstore_added_columns_total",
		Help: "Cumulative number of columns added to existing tables by writes.",
	}, []string{"table"})
	createdTablesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowstore_created_tables_total",
		Help: "Cumulative number of tables created by writes.",
	})
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowstore_transactions_total",
		Help: "Cumulative number of transactions, by outcome (commit or rollback).",
	}, []string{"outcome"})
)

const (
	opSelect   = "select"
	opCount    = "count"
	opDistinct = "distinct"
	opReplace  = "replace"
	opUpdate   = "update"
	opDelete   = "delete"
	opDDL      = "ddl"
)
