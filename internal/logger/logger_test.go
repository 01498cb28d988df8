package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfo(t *testing.T) {
	t.Setenv("UNISHARE_LOG_LEVEL", "")
	if log := New(); log.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level by default, got %s", log.GetLevel())
	}
}

func TestNewHonorsEnvLevel(t *testing.T) {
	t.Setenv("UNISHARE_LOG_LEVEL", "debug")
	if log := New(); log.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", log.GetLevel())
	}
}

func TestNewIgnoresGarbageLevel(t *testing.T) {
	t.Setenv("UNISHARE_LOG_LEVEL", "shouting")
	if log := New(); log.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected fallback to info, got %s", log.GetLevel())
	}
}
