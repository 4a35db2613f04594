// Package llamacpp loads the llama.cpp shared libraries used by the yzma
// engine and GPU backend. It is empty unless built with the yzma tag.
package llamacpp
