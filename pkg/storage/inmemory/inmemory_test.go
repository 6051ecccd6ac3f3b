package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/patchbay/pkg/storage"
	"github.com/papercomputeco/patchbay/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		base   time.Time
	)

	usageAt := func(model string, totalTokens int, at time.Time) *storage.UsageRecord {
		return &storage.UsageRecord{
			RequestID:        "req-" + model,
			Model:            model,
			FinishReason:     "stop",
			PromptTokens:     totalTokens / 2,
			CompletionTokens: totalTokens - totalTokens/2,
			TotalTokens:      totalTokens,
			DurationMS:       120,
			CreatedAt:        at,
		}
	}

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
		base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	Describe("RecordUsage", func() {
		It("stores a record and fills generated fields", func() {
			rec := usageAt("gemini-2.5-pro", 10, time.Time{})
			rec.CreatedAt = time.Time{}

			Expect(driver.RecordUsage(ctx, rec)).To(Succeed())
			Expect(rec.ID).NotTo(BeEmpty())
			Expect(rec.CreatedAt).NotTo(BeZero())
			Expect(driver.Count()).To(Equal(1))
		})

		It("rejects nil records", func() {
			err := driver.RecordUsage(ctx, nil)
			Expect(err).To(MatchError(storage.ErrNilRecord))
		})
	})

	Describe("RecentUsage", func() {
		It("returns records most recent first", func() {
			Expect(driver.RecordUsage(ctx, usageAt("first", 10, base))).To(Succeed())
			Expect(driver.RecordUsage(ctx, usageAt("second", 20, base.Add(time.Minute)))).To(Succeed())
			Expect(driver.RecordUsage(ctx, usageAt("third", 30, base.Add(2*time.Minute)))).To(Succeed())

			records, err := driver.RecentUsage(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[0].Model).To(Equal("third"))
			Expect(records[1].Model).To(Equal("second"))
			Expect(records[2].Model).To(Equal("first"))
		})

		It("honors the limit", func() {
			for i := 0; i < 5; i++ {
				rec := usageAt("gemini-2.5-pro", 10, base.Add(time.Duration(i)*time.Minute))
				Expect(driver.RecordUsage(ctx, rec)).To(Succeed())
			}

			records, err := driver.RecentUsage(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("returns an empty slice when nothing is recorded", func() {
			records, err := driver.RecentUsage(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})

	Describe("Totals", func() {
		It("returns zeros for an empty ledger", func() {
			totals, err := driver.Totals(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.Requests).To(Equal(0))
			Expect(totals.PromptTokens).To(Equal(0))
			Expect(totals.CompletionTokens).To(Equal(0))
			Expect(totals.TotalTokens).To(Equal(0))
		})

		It("aggregates across records", func() {
			Expect(driver.RecordUsage(ctx, usageAt("a", 10, base))).To(Succeed())
			Expect(driver.RecordUsage(ctx, usageAt("b", 30, base.Add(time.Minute)))).To(Succeed())

			totals, err := driver.Totals(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.Requests).To(Equal(2))
			Expect(totals.PromptTokens).To(Equal(20))
			Expect(totals.CompletionTokens).To(Equal(20))
			Expect(totals.TotalTokens).To(Equal(40))
		})
	})
})
