// Package services holds the error taxonomy and context plumbing shared by
// the pipeline components, plus subpackages wrapping external collaborators
// (object storage, speech synthesis).
package services
