// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/reclaim/internal/buildinfo"
	"github.com/autobrr/reclaim/internal/services/reclaim"
)

type Manager struct {
	registry        *prometheus.Registry
	reportCollector *ReportCollector
}

// NewManager creates a private registry holding build info and the run
// collector. Runtime collectors are left out: the output is a textfile for
// node_exporter, which already exports its own go_* and process_* series.
func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reclaim_build_info",
		Help: "Build information of the reclaim binary",
	}, []string{"version", "commit"})
	buildInfo.WithLabelValues(buildinfo.Version, buildinfo.Commit).Set(1)
	registry.MustRegister(buildInfo)

	reportCollector := NewReportCollector()
	registry.MustRegister(reportCollector)

	return &Manager{
		registry:        registry,
		reportCollector: reportCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Record makes report the run exposed by the registry.
func (m *Manager) Record(report *reclaim.Report) {
	m.reportCollector.Record(report)
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return err
	}
	log.Debug().Str("path", path).Msg("Wrote metrics textfile")
	return nil
}
