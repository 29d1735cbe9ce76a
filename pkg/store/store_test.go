package store_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tandemseis/hazengine/pkg/store"
)

type curve struct {
	SiteID int
	Poes   []float64
}

var _ = Describe("Store", func() {
	var (
		dir string
		s   *store.Store
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		s, err = store.Create(dir, 1)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	Describe("Set/Get round trip", func() {
		It("round-trips a record value", func() {
			in := curve{SiteID: 3, Poes: []float64{0.1, 0.2}}
			Expect(s.Set("hcurves/rlz-000", in, nil)).To(Succeed())

			var out curve
			Expect(s.Get("hcurves/rlz-000", &out)).To(Succeed())
			Expect(out).To(Equal(in))
		})

		It("round-trips a scalar attribute", func() {
			Expect(s.SetAttrs("sitecol", map[string]interface{}{"nsites": 10})).To(Succeed())
			v, err := s.GetAttr("sitecol", "nsites", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNumerically("==", 10))
		})

		It("fails with NotFound on a missing key with no parent", func() {
			var out curve
			err := s.Get("nope", &out)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("parent fallback", func() {
		It("cascades reads to the parent store", func() {
			parentDir := filepath.Join(dir, "parent")
			Expect(os.MkdirAll(parentDir, 0o755)).To(Succeed())
			parent, err := store.Create(parentDir, 2)
			Expect(err).NotTo(HaveOccurred())
			defer parent.Close()

			Expect(parent.Set("sitecol", curve{SiteID: 7}, nil)).To(Succeed())
			Expect(s.SetParent(parent)).To(Succeed())

			var out curve
			Expect(s.Get("sitecol", &out)).To(Succeed())
			Expect(out.SiteID).To(Equal(7))
		})
	})

	Describe("Keys", func() {
		It("enumerates in lexicographic order", func() {
			Expect(s.Set("hcurves/rlz-002", curve{}, nil)).To(Succeed())
			Expect(s.Set("hcurves/rlz-000", curve{}, nil)).To(Succeed())
			Expect(s.Set("hcurves/rlz-001", curve{}, nil)).To(Succeed())

			keys, err := s.Keys("hcurves")
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(Equal([]string{"rlz-000", "rlz-001", "rlz-002"}))
		})
	})

	Describe("Size", func() {
		It("sums nbytes over a group's children", func() {
			Expect(s.Set("hcurves/rlz-000", curve{SiteID: 1, Poes: []float64{0.1}}, nil)).To(Succeed())
			Expect(s.Set("hcurves/rlz-001", curve{SiteID: 2, Poes: []float64{0.1, 0.2}}, nil)).To(Succeed())

			total, err := s.Size("hcurves")
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeNumerically(">", 0))

			n0, err := s.Size("hcurves/rlz-000")
			Expect(err).NotTo(HaveOccurred())
			n1, err := s.Size("hcurves/rlz-001")
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(n0 + n1))
		})
	})

	Describe("SetIfCompatible", func() {
		It("rejects a shape change without Delete", func() {
			Expect(s.SetIfCompatible("gmf_data/0000", []float64{1, 2}, nil, []int{2})).To(Succeed())
			err := s.SetIfCompatible("gmf_data/0000", []float64{1, 2, 3}, nil, []int{3})
			Expect(err).To(HaveOccurred())
			var wc *store.WriteConflict
			Expect(err).To(BeAssignableToTypeOf(wc))
		})

		It("allows the same shape to overwrite", func() {
			Expect(s.SetIfCompatible("gmf_data/0000", []float64{1, 2}, nil, []int{2})).To(Succeed())
			Expect(s.SetIfCompatible("gmf_data/0000", []float64{3, 4}, nil, []int{2})).To(Succeed())
		})
	})

	Describe("extendable datasets", func() {
		It("streams rows in append order", func() {
			h, err := s.CreateExtendable("gmf_data/0001", map[string]string{"site_id": "int", "event_id": "uint64"})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Append(h, map[string]interface{}{"site_id": 1, "event_id": 1})).To(Succeed())
			Expect(s.Append(h, map[string]interface{}{"site_id": 2, "event_id": 2})).To(Succeed())

			n, err := s.RowCount("gmf_data/0001")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			var ids []float64
			err = s.GetRows("gmf_data/0001", func() interface{} { return &map[string]interface{}{} }, func(row interface{}) error {
				m := *row.(*map[string]interface{})
				ids = append(ids, m["site_id"].(float64))
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]float64{1, 2}))
		})
	})
})
