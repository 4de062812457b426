// Package config loads vpclambda configuration.
//
// Configuration comes from a CUE, YAML or JSON file, from VPCLAMBDA_*
// environment variables, or both. Every file is unified with a closed CUE
// schema before it is decoded over the defaults, so typos in field names
// and out-of-range values are reported with their file position.
//
// A minimal CUE file:
//
//	region: "eu-west-1"
//	functions: {
//		createArray:   "CreateArrayFunction"
//		getMyGlobalIP: "GetMyGlobalIPFunction"
//	}
//	stateMachineArn: "arn:aws:states:eu-west-1:123456789012:stateMachine:StateMachine"
//	lookup: timeoutSeconds: 5
//
// The same document in YAML:
//
//	region: eu-west-1
//	functions:
//	  createArray: CreateArrayFunction
//	  getMyGlobalIP: GetMyGlobalIPFunction
//	lookup:
//	  timeoutSeconds: 5
//
// Watcher reloads a file on change for long-running local sessions.
package config
