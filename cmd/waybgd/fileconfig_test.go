package main

import (
	"testing"

	"github.com/waybg/waybg/config"
)

func TestFileEntryToSourcePrefersPathOverColor(t *testing.T) {
	fe := fileEntry{Path: "/tmp/pics", ColorHex: "#ff0000"}
	src, err := fe.toSource()
	if err != nil {
		t.Fatalf("toSource: %v", err)
	}
	if _, ok := src.(config.PathSource); !ok {
		t.Fatalf("toSource = %T, want config.PathSource", src)
	}
}

func TestFileEntryToSourceColorParsesHex(t *testing.T) {
	fe := fileEntry{ColorHex: "#336699"}
	src, err := fe.toSource()
	if err != nil {
		t.Fatalf("toSource: %v", err)
	}
	color, ok := src.(config.ColorSourceConfig)
	if !ok {
		t.Fatalf("toSource = %T, want config.ColorSourceConfig", src)
	}
	if color.Single == nil {
		t.Fatal("expected Single to be set")
	}
	want := [3]float64{float64(0x33) / 255, float64(0x66) / 255, float64(0x99) / 255}
	got := *color.Single
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("channel %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFileEntryToSourceNoneNamedIsError(t *testing.T) {
	if _, err := (fileEntry{}).toSource(); err == nil {
		t.Fatal("expected an error when no source field is set")
	}
}

func TestParseHexTripleRejectsWrongLength(t *testing.T) {
	if _, _, _, err := parseHexTriple("#abc"); err == nil {
		t.Fatal("expected an error for a short hex string")
	}
}

func TestFileConfigToConfigBuildsDefaultAndOutputs(t *testing.T) {
	fc := fileConfig{
		SameOnAll: true,
		Default:   fileEntry{ColorHex: "#000000"},
		Outputs:   []fileEntry{{Output: "DP-1", ColorHex: "#ffffff"}},
	}
	cfg, err := fc.toConfig()
	if err != nil {
		t.Fatalf("toConfig: %v", err)
	}
	if !cfg.SameOnAll {
		t.Fatal("expected SameOnAll to carry through")
	}
	if len(cfg.Backgrounds) != 1 || cfg.Backgrounds[0].Output != "DP-1" {
		t.Fatalf("Backgrounds = %+v", cfg.Backgrounds)
	}
}
