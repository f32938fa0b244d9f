package facematch

import (
	"cmp"
	"slices"
)

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	// Calculate union.
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// SuppressOverlapping drops detections that overlap a stronger detection in
// the same image with IoU >= threshold. The detector occasionally reports one
// face twice; keeping both would let a single person claim two volunteers.
// Faces without a usable bounding box are always kept. Order is preserved.
func SuppressOverlapping(faces []DetectedFace, threshold float64) []DetectedFace {
	if threshold <= 0 || len(faces) < 2 {
		return faces
	}

	order := make([]int, len(faces))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(faces[b].DetScore, faces[a].DetScore)
	})

	dropped := make([]bool, len(faces))
	var kept []int
	for _, i := range order {
		if len(faces[i].BBox) == 4 {
			for _, k := range kept {
				if faces[k].ImageIndex == faces[i].ImageIndex &&
					ComputeIoU(faces[k].BBox, faces[i].BBox) >= threshold {
					dropped[i] = true
					break
				}
			}
		}
		if !dropped[i] {
			kept = append(kept, i)
		}
	}

	out := make([]DetectedFace, 0, len(kept))
	for i, f := range faces {
		if !dropped[i] {
			out = append(out, f)
		}
	}
	return out
}
