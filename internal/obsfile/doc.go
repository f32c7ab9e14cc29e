// Package obsfile classifies GNSS observation files by name.
//
// Three families are recognised: Hatanaka-compressed RINEX 2 observation
// files (ssssdddf.yyd), their decompressed RINEX 2 counterparts
// (ssssdddf.yyo), and the constellation subset files derived from the latter
// (VIEW_ssssdddf.yyo). Every pipeline stage filters its inputs and derives its
// output names through this package so the stages agree on what they accept.
//
// All functions are pure; nothing here touches the filesystem.
package obsfile
