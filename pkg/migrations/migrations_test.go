package migrations_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/supplier-intake/intake-pipeline/internal/config"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/pkg/migrations"
	"gorm.io/gorm"
)

func TestMigrations(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Migrations Suite")
}

var _ = Describe("migrations", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		cfg.Database.Name = filepath.Join(GinkgoT().TempDir(), "migrations.db")
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
	})

	AfterAll(func() {
		s.Close()
	})

	It("fails to migrate the db -- migration folder does not exists", func() {
		err := migrations.MigrateStore(gormdb, "some folder")
		Expect(err).NotTo(BeNil())
	})

	It("fails to migrate the db -- migration folder is a file", func() {
		file := filepath.Join(GinkgoT().TempDir(), "file.sql")
		Expect(os.WriteFile(file, []byte("-- +goose Up"), 0o600)).To(Succeed())

		err := migrations.MigrateStore(gormdb, file)
		Expect(err).To(MatchError(ContainSubstring("is not a folder")))
	})

	It("bundles migrations creating every table", func() {
		files, err := fs.Glob(migrations.SQL, "sql/*.sql")
		Expect(err).To(BeNil())
		Expect(files).NotTo(BeEmpty())

		content, err := fs.ReadFile(migrations.SQL, files[0])
		Expect(err).To(BeNil())
		for _, table := range []string{"submissions", "processing_log_entries", "suppliers", "feedback", "templates", "template_revisions", "analysis_snapshots"} {
			Expect(strings.Contains(string(content), "CREATE TABLE IF NOT EXISTS "+table+" ")).To(BeTrue(), table)
		}
	})
})
