package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apexline/simcore/pkg/core"
)

// LoadCourse reads a course JSON file and fills any zero tolerances from
// the race config.
func LoadCourse(path string, race RaceConfig) (core.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Course{}, fmt.Errorf("reading course file: %w", err)
	}

	var course core.Course
	if err := json.Unmarshal(data, &course); err != nil {
		return core.Course{}, fmt.Errorf("parsing course file %s: %w", path, err)
	}

	if course.Name == "" {
		course.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if course.HalfWidth == 0 {
		course.HalfWidth = race.CorridorHalfWidth
	}
	if course.CheckpointRadius == 0 {
		course.CheckpointRadius = race.CheckpointRadius
	}
	if course.FinishRadius == 0 {
		course.FinishRadius = race.FinishRadius
	}
	return course, nil
}
