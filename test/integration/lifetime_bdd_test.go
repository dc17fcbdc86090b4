//go:build integration

package integration

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/daemon"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/infra"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/metrics"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/placement"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/usecase"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/validate"
)

const appEntry = "[Desktop Entry]\nType=Application\nName=Integration\nExec=integration\n"

func squarePNG(side int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: uint8(x), B: uint8(y), A: 0xff})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Lifetime Manager", func() {
	var (
		tmpDir string
		dirs   infra.Dirs
		logger *zap.Logger
	)

	newManager := func() *usecase.Manager {
		fs := infra.NewFileSystemManager()
		m, err := usecase.NewManager(
			placement.NewLayout(dirs.TransientRoot, dirs.PersistentRoot, fs),
			fs,
			infra.NewYAMLCatalogStore(dirs.SnapshotPath),
			validate.NewEntryValidator(nil, logger),
			validate.NewIconDecoder(logger),
			logger,
			usecase.WithCatalogDuplicateCheck(true),
		)
		Expect(err).NotTo(HaveOccurred())
		return m
	}

	entryFile := func(root, id string) string {
		return filepath.Join(root, "applications", id+".desktop")
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "entryd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		Expect(os.MkdirAll(filepath.Join(tmpDir, "run"), 0o700)).To(Succeed())
		dirs = infra.Dirs{
			TransientRoot:  filepath.Join(tmpDir, "run", infra.AppDirName),
			PersistentRoot: filepath.Join(tmpDir, "cache", infra.AppDirName),
			SnapshotPath:   filepath.Join(tmpDir, "config", infra.AppDirName, "cache.yaml"),
		}
		Expect(infra.PrepareDirs(dirs)).To(Succeed())

		logger, _ = zap.NewDevelopment()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("restarting the daemon", func() {
		Context("when the snapshot holds every lifetime kind", func() {
			It("should drop session resources and keep the rest", func() {
				first := newManager()
				Expect(first.RegisterEntry(appEntry, "org.example.Session", domain.SessionLifetime("shell"))).To(Succeed())
				Expect(first.RegisterIcon("session-icon", squarePNG(64), domain.SessionLifetime("shell"))).To(Succeed())
				Expect(first.RegisterEntry(appEntry, "org.example.Kept", domain.PersistentLifetime("store"))).To(Succeed())
				Expect(first.RegisterIcon("kept-icon", squarePNG(1024), domain.PersistentLifetime("store"))).To(Succeed())

				second := newManager()
				catalog := second.Catalog()

				Expect(catalog.Lifetimes(domain.KindSession)).To(BeEmpty())
				Expect(entryFile(dirs.TransientRoot, "org.example.Session")).NotTo(BeAnExistingFile())
				Expect(filepath.Join(dirs.TransientRoot, "icons", "hicolor", "64x64", "apps", "session-icon.png")).NotTo(BeAnExistingFile())

				Expect(catalog.Entries[domain.PersistentLifetime("store")]).To(HaveLen(1))
				Expect(entryFile(dirs.PersistentRoot, "org.example.Kept")).To(BeAnExistingFile())
				Expect(filepath.Join(dirs.PersistentRoot, "icons", "hicolor", "512x512", "apps", "kept-icon.png")).To(BeAnExistingFile())
			})
		})

		Context("when an owner removes its persistent resources", func() {
			It("should stay removed after restart", func() {
				m := newManager()
				Expect(m.RegisterEntry(appEntry, "org.example.Kept", domain.PersistentLifetime("store"))).To(Succeed())
				Expect(m.RemoveLifetime(domain.PersistentLifetime("store"), metrics.ReasonRequest)).To(Succeed())

				restarted := newManager()
				Expect(restarted.Catalog().Lifetimes(0)).To(BeEmpty())
				Expect(entryFile(dirs.PersistentRoot, "org.example.Kept")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("duplicate app ids", func() {
		It("should reject an id already registered under another lifetime", func() {
			m := newManager()
			Expect(m.RegisterEntry(appEntry, "org.example.App", domain.ProcessLifetime(uint32(os.Getpid())))).To(Succeed())

			err := m.RegisterEntry(appEntry, "org.example.App", domain.PersistentLifetime("other"))
			Expect(err).To(MatchError(domain.ErrDuplicateAppID))
			Expect(entryFile(dirs.PersistentRoot, "org.example.App")).NotTo(BeAnExistingFile())
		})
	})

	Describe("reconciling process lifetimes", func() {
		Context("when the owning process exits", func() {
			It("should remove only that process's resources", func() {
				child := exec.Command("sleep", "30")
				if err := child.Start(); err != nil {
					Skip("cannot start child process: " + err.Error())
				}
				childPID := uint32(child.Process.Pid)

				m := newManager()
				Expect(m.RegisterEntry(appEntry, "org.example.Child", domain.ProcessLifetime(childPID))).To(Succeed())
				Expect(m.RegisterIcon("child", squarePNG(32), domain.ProcessLifetime(childPID))).To(Succeed())
				Expect(m.RegisterEntry(appEntry, "org.example.Self", domain.ProcessLifetime(uint32(os.Getpid())))).To(Succeed())

				reconciler := daemon.NewReconciler(
					daemon.DefaultReconcilerConfig(),
					m,
					infra.NewProcessManager(),
					nil,
					logger,
				)

				reconciler.Reconcile()
				Expect(entryFile(dirs.TransientRoot, "org.example.Child")).To(BeAnExistingFile())

				Expect(child.Process.Kill()).To(Succeed())
				_ = child.Wait()

				Eventually(func() []uint32 {
					reconciler.Reconcile()
					return m.ProcessPIDs()
				}, 5*time.Second, 100*time.Millisecond).Should(ConsistOf(uint32(os.Getpid())))

				Expect(entryFile(dirs.TransientRoot, "org.example.Child")).NotTo(BeAnExistingFile())
				Expect(filepath.Join(dirs.TransientRoot, "icons", "hicolor", "32x32", "apps", "child.png")).NotTo(BeAnExistingFile())
				Expect(entryFile(dirs.TransientRoot, "org.example.Self")).To(BeAnExistingFile())

				reloaded, err := infra.NewYAMLCatalogStore(dirs.SnapshotPath).Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(reloaded.Has(domain.ProcessLifetime(childPID))).To(BeFalse())
			})
		})
	})
})
