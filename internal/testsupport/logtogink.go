// (c) Siemens AG 2024
//
// SPDX-License-Identifier: MIT

//go:build matchers
// +build matchers

// Package testsupport holds Ginkgo test helpers shared across piri's
// package test suites, adapted from the teacher's internal/test helpers for
// piri's slog-based logging façade.
package testsupport

import (
	"bytes"
	"sync"

	. "github.com/onsi/ginkgo/v2"

	"github.com/piri-wm/piri/internal/logging"
)

// LogToGinkgo sends piri's process-wide log output to Ginkgo for the
// duration of the current spec, so a failing test shows what was logged
// while it ran. Additionally, it wraps the current GinkgoWriter so tests can
// query accumulated output via its [fmt.Stringer] interface.
//
// Usage:
//
//	BeforeEach(testsupport.LogToGinkgo)
//
//	Eventually(GinkgoWriter.(fmt.Stringer).String).Should(...)
func LogToGinkgo() {
	gw := GinkgoWriter
	buffered := newBuffer(GinkgoWriter)
	GinkgoWriter = buffered
	logging.SetOutput(buffered, false)
	DeferCleanup(func() {
		GinkgoWriter = gw
		logging.SetOutput(GinkgoWriter, false)
	})
}

// buffer is race-safe, can be queried for its contents, and wraps a
// GinkgoWriter.
type buffer struct {
	GinkgoWriterInterface
	mu sync.Mutex
	b  bytes.Buffer
}

func newBuffer(gw GinkgoWriterInterface) GinkgoWriterInterface {
	return &buffer{
		GinkgoWriterInterface: gw,
	}
}

func (b *buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.GinkgoWriterInterface.Write(p)
	return b.b.Write(p)
}

func (b *buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}
