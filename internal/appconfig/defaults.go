package appconfig

// Default local queries. Series names are the ones the Performance Store derives its
// realtime and consensus summaries from.
var defaultQueries = []Query{
	{Name: "fabric_transactions", Source: "prometheus", Expr: `sum(rate(hyperledger_fabric_transactions_total[1m]))`, Series: "tps"},
	{Name: "consensus_latency", Source: "prometheus", Expr: `avg(hyperledger_fabric_consensus_latency_seconds)`, Series: "latency", Scale: 1000},
	{Name: "cpu_usage", Source: "prometheus", Expr: `avg(rate(cpu_usage_seconds_total[5m])) * 100`, Series: "cpu"},
	{Name: "memory_usage", Source: "prometheus", Expr: `avg(memory_usage_bytes / memory_limit_bytes) * 100`, Series: "memory"},
	{Name: "network_io", Source: "prometheus", Expr: `sum(rate(network_bytes_total[5m]))`, Series: "networkThroughput", Scale: 1e-6},
	{Name: "fabric_blocks", Source: "prometheus", Expr: `max(hyperledger_fabric_blocks_total)`, Series: "blockHeight"},
	{Name: "block_time", Source: "prometheus", Expr: `avg(hyperledger_fabric_block_commit_seconds)`, Series: "blockTime"},
	{Name: "leader_changes", Source: "prometheus", Expr: `sum(hyperledger_fabric_orderer_consensus_etcdraft_leader_changes_total)`, Series: "leaderElections"},
	{Name: "commit_efficiency", Source: "prometheus", Expr: `100 * (1 - sum(rate(hyperledger_fabric_orderer_consensus_etcdraft_proposal_failures_total[5m])) / clamp_min(sum(rate(hyperledger_fabric_orderer_consensus_etcdraft_normal_proposals_received[5m])), 1))`, Series: "commitEfficiency"},
	{Name: "active_nodes", Source: "prometheus", Expr: `count(up{job="hyperledger-fabric"} == 1)`, Series: "activeNodes"},
	{Name: "monitoring_service", Source: "monitoring", Expr: "/api/metrics"},
}

var defaultRegionQueries = []RegionQuery{
	{Field: "tps", Expr: `sum by (region) (rate(hyperledger_fabric_transactions_total[1m]))`},
	{Field: "latency", Expr: `avg by (region) (hyperledger_fabric_consensus_latency_seconds)`, Scale: 1000},
	{Field: "transactions", Expr: `sum by (region) (hyperledger_fabric_transactions_total)`},
	{Field: "errorRate", Expr: `sum by (region) (rate(hyperledger_fabric_transactions_failed_total[1m])) / sum by (region) (rate(hyperledger_fabric_transactions_total[1m]))`},
	{Field: "optimization", Expr: `sum by (region) (rate(georaft_geo_optimized_requests_total[1m])) / sum by (region) (rate(georaft_requests_total[1m]))`},
	{Field: "throughput", Expr: `sum by (region) (rate(network_bytes_total[1m]))`, Scale: 1e-6},
}

// DefaultQueries returns a copy of the built-in local query set.
func DefaultQueries() []Query {
	return append([]Query(nil), defaultQueries...)
}

// DefaultRegionQueries returns a copy of the built-in regional query set.
func DefaultRegionQueries() []RegionQuery {
	return append([]RegionQuery(nil), defaultRegionQueries...)
}

// viper defaults are stored as plain maps so a config file can replace them wholesale.
func defaultQueryMaps() []map[string]any {
	out := make([]map[string]any, 0, len(defaultQueries))
	for _, q := range defaultQueries {
		m := map[string]any{"name": q.Name, "source": q.Source, "expr": q.Expr}
		if q.Series != "" {
			m["series"] = q.Series
		}
		if q.Scale != 0 {
			m["scale"] = q.Scale
		}
		out = append(out, m)
	}
	return out
}

func defaultRegionQueryMaps() []map[string]any {
	out := make([]map[string]any, 0, len(defaultRegionQueries))
	for _, q := range defaultRegionQueries {
		m := map[string]any{"field": q.Field, "expr": q.Expr}
		if q.Scale != 0 {
			m["scale"] = q.Scale
		}
		out = append(out, m)
	}
	return out
}
