//go:build integration

package integration

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/nightumbrella/ngsn/internal/daemon"
	"github.com/nightumbrella/ngsn/internal/domain"
	"github.com/nightumbrella/ngsn/internal/infra"
	"github.com/nightumbrella/ngsn/internal/policy"
	"github.com/nightumbrella/ngsn/internal/usecase"
	"github.com/nightumbrella/ngsn/test/fixtures"
)

var _ = Describe("Monitor", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		table    *fixtures.FakeConnectionTable
		dns      fixtures.StaticDNS
		resolver *usecase.Resolver
		mon      *daemon.Monitor
	)

	fast := daemon.MonitorConfig{
		SampleInterval:  20 * time.Millisecond,
		RetryBackoff:    20 * time.Millisecond,
		DisplayInterval: 20 * time.Millisecond,
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		table = fixtures.NewFakeConnectionTable()
		dns = fixtures.StaticDNS{
			"93.184.216.34": {"www.example.com."},
		}
	})

	JustBeforeEach(func() {
		logger := zap.NewNop()
		services := policy.NewRegistry()
		resolver = usecase.NewResolver(dns, services, time.Second, logger, nil)
		aggregator := usecase.NewAggregator()
		sampler := usecase.NewSampler(table, resolver, aggregator.Counters(), logger, nil)
		mon = daemon.NewMonitor(ctx, fast, sampler, resolver, aggregator, logger, nil)
	})

	AfterEach(func() {
		cancel()
		mon.Wait()
	})

	Context("when google holds two sockets", func() {
		BeforeEach(func() {
			table.Set(nil,
				fixtures.Established("142.250.1.1", 443),
				fixtures.Established("142.250.1.1", 80),
			)
		})

		It("publishes one ranked row for the domain", func() {
			Eventually(func() []domain.SummaryRow {
				return mon.Latest().Rows
			}).Should(HaveLen(1))

			s := mon.Latest()
			Expect(s.Rows[0].DisplayName).To(Equal("google.com (142.250.1.1)"))
			Expect(s.Rows[0].Count).To(Equal(2))
			Expect(s.Rows[0].PortsDisplay).To(Equal("443, 80"))
			Expect(s.TotalConnections).To(Equal(2))
			Expect(s.UniqueDomains).To(Equal(1))
		})

		It("accumulates the domain into history", func() {
			Eventually(func() int {
				return len(mon.History())
			}).Should(Equal(1))

			rec := mon.History()[0]
			Expect(rec.Domain).To(Equal("google.com"))
			Expect(rec.Ports).To(Equal([]uint16{80, 443}))
		})
	})

	Context("with local, listening and remote sockets mixed", func() {
		BeforeEach(func() {
			listening := fixtures.Established("", 0)
			listening.Status = domain.StatusListen

			table.Set(nil,
				fixtures.Established("127.0.0.1", 5432),
				fixtures.Established("10.0.0.2", 22),
				fixtures.Established("fd00::1", 443),
				listening,
				fixtures.Established("93.184.216.34", 443),
				fixtures.Established("93.184.216.34", 443),
				fixtures.Established("185.199.108.153", 443),
			)
		})

		It("shows only remote traffic, busiest domain first", func() {
			Eventually(func() int {
				return mon.Latest().UniqueDomains
			}).Should(Equal(2))

			rows := mon.Latest().Rows
			Expect(rows[0].DisplayName).To(Equal("example.com (93.184.216.34)"))
			Expect(rows[0].Count).To(Equal(2))
			Expect(rows[1].DisplayName).To(Equal("github.com (185.199.108.153)"))
			Expect(mon.Latest().TotalConnections).To(Equal(3))
		})
	})

	Context("when the connection table is not readable", func() {
		BeforeEach(func() {
			table.Set(fmt.Errorf("%w: operation not permitted", domain.ErrAccessDenied))
		})

		It("keeps running with an empty table", func() {
			Eventually(table.Calls).Should(BeNumerically(">=", 3))
			Expect(mon.IsRunning()).To(BeTrue())
			Expect(mon.Latest().Rows).To(BeEmpty())
		})
	})

	Context("when the user stops, clears and restarts", func() {
		BeforeEach(func() {
			table.Set(nil, fixtures.Established("142.250.1.1", 443))
		})

		It("freezes while stopped and recovers after start", func() {
			Eventually(func() int { return len(mon.History()) }).Should(Equal(1))

			mon.Stop()
			mon.Wait()
			Expect(mon.IsRunning()).To(BeFalse())

			mon.Clear()
			Expect(mon.History()).To(BeEmpty())
			Expect(mon.Latest().Rows).To(BeEmpty())
			Expect(resolver.Len()).To(Equal(0))

			calls := table.Calls()
			Consistently(table.Calls, 100*time.Millisecond).Should(Equal(calls))

			mon.Start()
			Expect(mon.IsRunning()).To(BeTrue())
			Eventually(func() int { return len(mon.Latest().Rows) }).Should(Equal(1))
		})
	})
})

var _ = Describe("OS connection table", func() {
	var pair *fixtures.LoopbackPair

	BeforeEach(func() {
		var err error
		pair, err = fixtures.NewLoopbackPair()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		pair.Close()
	})

	It("lists our own loopback connection as established", func() {
		conns, err := infra.NewConnectionLister("tcp4").List(context.Background())
		Expect(err).NotTo(HaveOccurred())

		var found bool
		for _, c := range conns {
			if c.RemoteIP == "127.0.0.1" && c.RemotePort == pair.Port() {
				found = true
				Expect(c.Status).To(Equal(domain.StatusEstablished))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("never samples loopback traffic", func() {
		logger := zap.NewNop()
		services := policy.NewRegistry()
		resolver := usecase.NewResolver(fixtures.StaticDNS{}, services, time.Second, logger, nil)
		sampler := usecase.NewSampler(infra.NewConnectionLister("tcp4"), resolver, usecase.NewCounterStore(), logger, nil)

		entries, err := sampler.Sample(context.Background())
		Expect(err).NotTo(HaveOccurred())
		for _, e := range entries {
			Expect(e.IP).NotTo(Equal("127.0.0.1"))
		}
	})
})
