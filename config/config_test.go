package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/forksim/config"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	Describe("Defaults", func() {
		It("should have the documented default values", func() {
			c := config.DefaultConfig()

			Expect(c.NumCores).To(Equal(4))
			Expect(c.SplitFactor).To(Equal(2))
			Expect(c.PredictorEntries).To(Equal(uint32(1024)))
			Expect(c.PredictorInit).To(Equal(uint8(2)))
			Expect(c.ReadSetDepth).To(Equal(64))
			Expect(c.NumRegisters).To(Equal(32))
			Expect(c.Freq).To(Equal(1 * sim.GHz))
		})

		It("should validate", func() {
			Expect(config.DefaultConfig().Validate()).To(Succeed())
		})

		It("should report a 1ns cycle at 1 GHz", func() {
			Expect(config.DefaultConfig().CycleTime()).To(BeNumerically("~", 1e-9, 1e-15))
		})
	})

	Describe("Validate", func() {
		DescribeTable("should reject invalid values",
			func(mutate func(c *config.Config), key string) {
				c := config.DefaultConfig()
				mutate(c)

				err := c.Validate()
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(key))
			},
			Entry("no workers", func(c *config.Config) { c.NumCores = 1 }, "num_cores"),
			Entry("zero split", func(c *config.Config) { c.SplitFactor = 0 }, "split_factor"),
			Entry("split wider than workers", func(c *config.Config) { c.SplitFactor = 4 }, "split_factor"),
			Entry("non power of two table", func(c *config.Config) { c.PredictorEntries = 1000 }, "predictor_entries"),
			Entry("counter out of range", func(c *config.Config) { c.PredictorInit = 4 }, "predictor_init"),
			Entry("empty read-set", func(c *config.Config) { c.ReadSetDepth = 0 }, "readset_depth"),
			Entry("no registers", func(c *config.Config) { c.NumRegisters = 0 }, "num_registers"),
			Entry("no clock", func(c *config.Config) { c.Freq = 0 }, "freq"),
		)
	})

	Describe("Files", func() {
		It("should round-trip through JSON", func() {
			path := filepath.Join(dir, "core.json")
			c := config.DefaultConfig()
			c.NumCores = 8
			c.ReadSetDepth = 16

			Expect(c.SaveConfig(path)).To(Succeed())
			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should round-trip through YAML", func() {
			path := filepath.Join(dir, "core.yaml")
			c := config.DefaultConfig()
			c.SplitFactor = 3

			Expect(c.SaveConfig(path)).To(Succeed())
			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should keep defaults for missing keys", func() {
			path := filepath.Join(dir, "partial.yml")
			Expect(os.WriteFile(path, []byte("num_cores: 6\n"), 0644)).To(Succeed())

			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.NumCores).To(Equal(6))
			Expect(loaded.NumRegisters).To(Equal(32))
		})

		It("should fail on a missing file", func() {
			_, err := config.LoadConfig(filepath.Join(dir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})

		It("should fail on malformed JSON", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte("{num_cores"), 0644)).To(Succeed())

			_, err := config.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})

	It("should clone independently", func() {
		c := config.DefaultConfig()
		clone := c.Clone()
		clone.NumCores = 16

		Expect(c.NumCores).To(Equal(4))
	})
})
