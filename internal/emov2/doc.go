// Package emov2 implements the EMOv2 image backbone: a convolution/attention
// hybrid built from inverted residual blocks whose expansion step mixes 1x1
// convolutions with efficient windowed multi-head self-attention.
//
// The attention operators come in three flavors that differ only in how the
// feature map is tiled into windows: remote (strided sampling, each window
// gathers pixels one window-count apart), close (contiguous tiles), and
// hybrid (both tilings of a shared projection, summed).
//
// A Backbone is a stem plus four stages; Forward returns the feature maps of
// the configured output segments for downstream dense-prediction heads.
package emov2
