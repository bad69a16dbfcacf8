// Package textutil provides small text helpers for safe filesystem naming.
package textutil
