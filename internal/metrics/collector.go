// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/reclaim/internal/services/reclaim"
)

var (
	kinds    = []reclaim.TargetKind{reclaim.TargetDescriptor, reclaim.TargetMapping}
	outcomes = []reclaim.Outcome{reclaim.OutcomeDryRun, reclaim.OutcomeReclaimed, reclaim.OutcomeFailed, reclaim.OutcomeSkipped}
)

// ReportCollector exposes the last recorded run.
type ReportCollector struct {
	report *reclaim.Report

	handlesDesc         *prometheus.Desc
	inodesDesc          *prometheus.Desc
	mappingsDesc        *prometheus.Desc
	reclaimableDesc     *prometheus.Desc
	targetsDesc         *prometheus.Desc
	bytesDesc           *prometheus.Desc
	discoveryErrorsDesc *prometheus.Desc
	skippedDesc         *prometheus.Desc
	lastRunDesc         *prometheus.Desc
	durationDesc        *prometheus.Desc
}

func NewReportCollector() *ReportCollector {
	return &ReportCollector{
		handlesDesc: prometheus.NewDesc(
			"reclaim_open_handles",
			"Open descriptors on deleted files found by the last run",
			nil,
			nil,
		),
		inodesDesc: prometheus.NewDesc(
			"reclaim_inodes",
			"Distinct deleted inodes held open, found by the last run",
			nil,
			nil,
		),
		mappingsDesc: prometheus.NewDesc(
			"reclaim_mappings",
			"Memory mappings of deleted files found by the last run",
			nil,
			nil,
		),
		reclaimableDesc: prometheus.NewDesc(
			"reclaim_reclaimable_bytes",
			"Bytes held by deleted files found by the last run, by target kind",
			[]string{"kind"},
			nil,
		),
		targetsDesc: prometheus.NewDesc(
			"reclaim_targets",
			"Targets handled by the last run, by kind and outcome",
			[]string{"kind", "outcome"},
			nil,
		),
		bytesDesc: prometheus.NewDesc(
			"reclaim_target_bytes",
			"Bytes of targets handled by the last run, by kind and outcome; mapping bytes are mapped extents and may count one file more than once",
			[]string{"kind", "outcome"},
			nil,
		),
		discoveryErrorsDesc: prometheus.NewDesc(
			"reclaim_discovery_errors",
			"Discovery facilities that could not run during the last run",
			nil,
			nil,
		),
		skippedDesc: prometheus.NewDesc(
			"reclaim_skipped_processes",
			"Processes whose tables could not be read during the last run",
			nil,
			nil,
		),
		lastRunDesc: prometheus.NewDesc(
			"reclaim_last_run_timestamp_seconds",
			"Unix time the last run finished",
			[]string{"dry_run"},
			nil,
		),
		durationDesc: prometheus.NewDesc(
			"reclaim_last_run_duration_seconds",
			"Wall time of the last run",
			nil,
			nil,
		),
	}
}

// Record replaces the run the collector exposes.
func (c *ReportCollector) Record(report *reclaim.Report) {
	c.report = report
}

func (c *ReportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.handlesDesc
	ch <- c.inodesDesc
	ch <- c.mappingsDesc
	ch <- c.reclaimableDesc
	ch <- c.targetsDesc
	ch <- c.bytesDesc
	ch <- c.discoveryErrorsDesc
	ch <- c.skippedDesc
	ch <- c.lastRunDesc
	ch <- c.durationDesc
}

func (c *ReportCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.report
	if r == nil {
		log.Debug().Msg("No run recorded, skipping metrics collection")
		return
	}

	ch <- prometheus.MustNewConstMetric(c.handlesDesc, prometheus.GaugeValue, float64(r.Groups.Handles()))
	ch <- prometheus.MustNewConstMetric(c.inodesDesc, prometheus.GaugeValue, float64(r.Groups.Len()))
	ch <- prometheus.MustNewConstMetric(c.mappingsDesc, prometheus.GaugeValue, float64(len(r.Mappings)))

	ch <- prometheus.MustNewConstMetric(c.reclaimableDesc, prometheus.GaugeValue, float64(r.Groups.Size()), string(reclaim.TargetDescriptor))
	ch <- prometheus.MustNewConstMetric(c.reclaimableDesc, prometheus.GaugeValue, float64(r.MappingBytes()), string(reclaim.TargetMapping))

	for _, kind := range kinds {
		for _, outcome := range outcomes {
			ch <- prometheus.MustNewConstMetric(
				c.targetsDesc,
				prometheus.GaugeValue,
				float64(r.Count(kind, outcome)),
				string(kind),
				string(outcome),
			)
			ch <- prometheus.MustNewConstMetric(
				c.bytesDesc,
				prometheus.GaugeValue,
				float64(r.Bytes(kind, outcome)),
				string(kind),
				string(outcome),
			)
		}
	}

	ch <- prometheus.MustNewConstMetric(c.discoveryErrorsDesc, prometheus.GaugeValue, float64(len(r.DiscoveryErrors)))
	ch <- prometheus.MustNewConstMetric(c.skippedDesc, prometheus.GaugeValue, float64(len(r.Skipped)))

	if !r.Finished.IsZero() {
		dryRun := "false"
		if r.DryRun {
			dryRun = "true"
		}
		ch <- prometheus.MustNewConstMetric(c.lastRunDesc, prometheus.GaugeValue, float64(r.Finished.Unix()), dryRun)
		ch <- prometheus.MustNewConstMetric(c.durationDesc, prometheus.GaugeValue, r.Finished.Sub(r.Started).Seconds())
	}
}
