package taskmgr_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tandemseis/hazengine/pkg/taskmgr"
)

var _ = Describe("TaskManager", func() {
	var tm *taskmgr.TaskManager

	BeforeEach(func() {
		tm = taskmgr.New(taskmgr.Options{ConcurrentTasks: 4})
	})

	Describe("ApplyReduce", func() {
		It("sums weighted blocks via an additive aggregator", func() {
			items := make([]taskmgr.Item, 20)
			for i := range items {
				items[i] = i + 1
			}
			sumBlock := func(ctx context.Context, b taskmgr.Block, rest ...interface{}) (interface{}, error) {
				total := 0
				for _, it := range b.Items {
					total += it.(int)
				}
				return total, nil
			}
			agg := func(acc, v interface{}) interface{} { return acc.(int) + v.(int) }

			result, err := tm.ApplyReduce(context.Background(), sumBlock, items, nil, agg, 0, 4, nil, nil, "sum", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(210)) // 1+2+...+20
		})

		It("propagates a worker error as a driver-side error", func() {
			items := []taskmgr.Item{1, 2, 3}
			failing := func(ctx context.Context, b taskmgr.Block, rest ...interface{}) (interface{}, error) {
				return nil, errors.New("boom")
			}
			agg := func(acc, v interface{}) interface{} { return acc }

			_, err := tm.ApplyReduce(context.Background(), failing, items, nil, agg, nil, 1, nil, nil, "fail", nil)
			Expect(err).To(HaveOccurred())
		})

		It("returns the initial accumulator for an empty item set", func() {
			agg := func(acc, v interface{}) interface{} { return v }
			result, err := tm.ApplyReduce(context.Background(), nil, nil, nil, agg, "acc0", 4, nil, nil, "noop", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("acc0"))
		})
	})
})
