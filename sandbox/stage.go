package sandbox

import "fmt"

// Stage copies the artifact at srcPath in src to dstPath in dst.
//
// The full content is read before anything is written, and the write is
// atomic, so dst holds either its previous content or the complete copy.
// A missing source returns ErrArtifactNotFound.
func Stage(src *Sandbox, srcPath string, dst *Sandbox, dstPath string) error {
	data, err := src.ReadArtifact(srcPath)
	if err != nil {
		return fmt.Errorf("stage %s:%s: %w", src.Role(), cleanPath(srcPath), err)
	}
	if err := dst.WriteArtifact(dstPath, data); err != nil {
		return fmt.Errorf("stage to %s:%s: %w", dst.Role(), cleanPath(dstPath), err)
	}
	return nil
}
