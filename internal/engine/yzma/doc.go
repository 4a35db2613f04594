// Package yzma registers the "llamacpp" engine, which drives a shared
// llama.cpp build through github.com/hybridgroup/yzma. It is compiled only
// with the yzma build tag and needs LLMODEL_LIB to point at the libraries.
package yzma
