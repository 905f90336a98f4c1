// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

//go:build integration

package integration

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/framehud/framehud/internal/builtin"
	"github.com/framehud/framehud/internal/plugin"
	luaplugin "github.com/framehud/framehud/internal/plugin/lua"
)

// writeScript lays out one script plugin directory under root.
func writeScript(root, name, manifest, source string) string {
	dir := filepath.Join(root, name)
	Expect(os.MkdirAll(dir, 0o750)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(manifest), 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "main.lua"), []byte(source), 0o600)).To(Succeed())
	return dir
}

var _ = Describe("Runtime", func() {
	var (
		reg   *plugin.Registry
		sched *plugin.Scheduler
		root  string
	)

	BeforeEach(func() {
		reg = plugin.NewRegistry()
		sched = plugin.NewScheduler(reg)
		root = GinkgoT().TempDir()
	})

	AfterEach(func() {
		sched.Shutdown()
	})

	Describe("mixed built-in and script plugins", func() {
		const navManifest = `
name: navline
version: 1.0.0
entry: main.lua
consumes:
  - nav.heading
defaults:
  z-index: 50
`
		const navSource = `
local heading = "?"

function on_update(delta)
  heading = hud.get("nav.heading", "?")
end

function on_render(frame)
  return frame .. "NAV " .. tostring(heading) .. "\n"
end
`

		BeforeEach(func() {
			writeScript(root, "navline", navManifest, navSource)

			Expect(reg.Register(builtin.GPSSimDefinition(), plugin.DefaultConfig())).To(Succeed())

			found, broken, err := luaplugin.Discover(root)
			Expect(err).NotTo(HaveOccurred())
			Expect(broken).To(BeEmpty())
			for _, d := range found {
				Expect(reg.Register(d.Def, d.Cfg)).To(Succeed())
			}
		})

		It("orders the script after its provider and feeds it bus data", func() {
			res := sched.Resolve()
			Expect(res.Failures).To(BeEmpty())
			Expect(res.LoadOrder).To(Equal([]string{"gpssim", "navline"}))

			frame := sched.Tick(0.016, nil)
			Expect(string(frame)).To(ContainSubstring("NAV "))
			Expect(string(frame)).NotTo(ContainSubstring("NAV ?"),
				"provider runs first, so the script never sees the placeholder")
		})

		It("delivers simulator events to filtered script plugins", func() {
			const listenerManifest = `
name: fixlog
version: 1.0.0
entry: main.lua
events:
  - "nav.*"
`
			const listenerSource = `
local fixes = 0

function on_event(event)
  if event.type == "nav.fix" then
    fixes = fixes + 1
    hud.provide("fixlog.count", fixes)
  end
end
`
			writeScript(root, "fixlog", listenerManifest, listenerSource)
			found, _, err := luaplugin.Discover(root)
			Expect(err).NotTo(HaveOccurred())
			for _, d := range found {
				if d.Def.Meta.Name == "fixlog" {
					Expect(reg.Register(d.Def, d.Cfg)).To(Succeed())
				}
			}
			sched.Resolve()

			// The simulator posts a fix every five simulated seconds; the fix
			// is delivered after that tick's update phase.
			for i := 0; i < 7; i++ {
				sched.Tick(1.0, nil)
			}
			Expect(sched.Context().Data.Get("fixlog.count", nil)).To(Equal(1.0))
		})
	})

	Describe("hot reload", func() {
		const manifest = "name: banner\nversion: 1.0.0\nentry: main.lua\n"

		It("picks up edited script source without restarting", func() {
			dir := writeScript(root, "banner", manifest, `
function on_render(frame)
  return frame .. "v1\n"
end
`)
			def, cfg, _, err := luaplugin.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Register(def, cfg)).To(Succeed())
			sched.Resolve()

			Expect(string(sched.Tick(0.016, nil))).To(Equal("v1\n"))

			Expect(os.WriteFile(filepath.Join(dir, "main.lua"), []byte(`
function on_render(frame)
  return frame .. "v2\n"
end
`), 0o600)).To(Succeed())

			fresh, _, _, err := luaplugin.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(sched.Reload("banner", &fresh)).To(Succeed())

			Expect(string(sched.Tick(0.016, nil))).To(Equal("v2\n"))
		})

		It("leaves a plugin failed when its new source is broken, then recovers", func() {
			dir := writeScript(root, "banner", manifest, `
function on_render(frame)
  return frame .. "ok\n"
end
`)
			def, cfg, _, err := luaplugin.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Register(def, cfg)).To(Succeed())
			sched.Resolve()
			sched.Tick(0.016, nil)

			Expect(os.WriteFile(filepath.Join(dir, "main.lua"),
				[]byte("function on_render( -- broken\n"), 0o600)).To(Succeed())
			broken, _, _, err := luaplugin.Load(dir)
			Expect(err).NotTo(HaveOccurred(), "manifest is still valid")
			Expect(sched.Reload("banner", &broken)).To(MatchError(plugin.ErrReload))

			status := statusOf(sched, "banner")
			Expect(status.State).To(Equal(plugin.StateFailed))
			Expect(string(sched.Tick(0.016, nil))).To(BeEmpty())

			Expect(os.WriteFile(filepath.Join(dir, "main.lua"), []byte(`
function on_render(frame)
  return frame .. "fixed\n"
end
`), 0o600)).To(Succeed())
			fixed, _, _, err := luaplugin.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(sched.Reload("banner", &fixed)).To(Succeed())
			Expect(string(sched.Tick(0.016, nil))).To(Equal("fixed\n"))
		})
	})

	Describe("key routing", func() {
		It("routes keys through built-ins and scripts in load order", func() {
			const manifest = "name: keyscript\nversion: 1.0.0\nentry: main.lua\n"
			writeScript(root, "keyscript", manifest, `
function on_key(key)
  if key == "q" then
    hud.provide("keyscript.quit", true)
    return true
  end
  return false
end
`)
			Expect(reg.Register(builtin.CompassDefinition(), plugin.DefaultConfig())).To(Succeed())
			found, _, err := luaplugin.Discover(root)
			Expect(err).NotTo(HaveOccurred())
			for _, d := range found {
				Expect(reg.Register(d.Def, d.Cfg)).To(Succeed())
			}
			sched.Resolve()

			Expect(sched.HandleKey("q")).To(BeTrue())
			Expect(sched.Context().Data.Get("keyscript.quit", nil)).To(Equal(true))

			Expect(sched.HandleKey("c")).To(BeTrue(), "compass consumes its own key")
			Expect(sched.HandleKey("z")).To(BeFalse())
		})
	})
})

func statusOf(sched *plugin.Scheduler, name string) plugin.Status {
	for _, st := range sched.Snapshot() {
		if st.Name == name {
			return st
		}
	}
	Fail("no status for " + name)
	return plugin.Status{}
}
