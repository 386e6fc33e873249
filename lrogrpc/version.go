package lrogrpc

const version = "v0.1.0"
