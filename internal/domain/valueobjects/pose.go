package valueobjects

import "fmt"

// PoseLabel keys the per-layer image map. DefaultPose is the canonical
// rendering every derived operation starts from.
type PoseLabel string

const DefaultPose PoseLabel = "default"

// DefaultPoseIndex is the catalog position of DefaultPose.
const DefaultPoseIndex = 0

type Pose struct {
	label       PoseLabel
	instruction string
}

func (p Pose) Label() PoseLabel {
	return p.label
}

// Instruction is the natural-language pose prompt sent to the image model.
// Empty for the default pose.
func (p Pose) Instruction() string {
	return p.instruction
}

// PoseCatalog is the fixed, ordered list of selectable poses. Index 0 is
// always DefaultPose.
type PoseCatalog struct {
	poses []Pose
}

func NewPoseCatalog(instructions []string) (*PoseCatalog, error) {
	poses := []Pose{{label: DefaultPose}}
	seen := map[PoseLabel]bool{DefaultPose: true}

	for _, instruction := range instructions {
		if instruction == "" {
			return nil, fmt.Errorf("pose instruction cannot be empty")
		}
		label := PoseLabel(instruction)
		if seen[label] {
			return nil, fmt.Errorf("duplicate pose instruction: %q", instruction)
		}
		seen[label] = true
		poses = append(poses, Pose{label: label, instruction: instruction})
	}

	return &PoseCatalog{poses: poses}, nil
}

func DefaultPoseCatalog() *PoseCatalog {
	catalog, _ := NewPoseCatalog([]string{
		"Slightly turned, 3/4 view",
		"Side profile view",
		"Jumping in the air, mid-action shot",
		"Walking towards camera",
		"Leaning against a wall",
	})
	return catalog
}

func (c *PoseCatalog) Len() int {
	return len(c.poses)
}

func (c *PoseCatalog) At(index int) (Pose, error) {
	if index < 0 || index >= len(c.poses) {
		return Pose{}, fmt.Errorf("pose index %d out of range [0, %d)", index, len(c.poses))
	}
	return c.poses[index], nil
}

// IndexOf returns the catalog index of label, or -1.
func (c *PoseCatalog) IndexOf(label PoseLabel) int {
	for i, p := range c.poses {
		if p.label == label {
			return i
		}
	}
	return -1
}

func (c *PoseCatalog) Poses() []Pose {
	out := make([]Pose, len(c.poses))
	copy(out, c.poses)
	return out
}
