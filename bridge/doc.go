// Package bridge translates native failures into foreign exceptions.
//
// Every error crossing back into the foreign runtime goes through Raise,
// which picks the raise primitive matching the error kind so that foreign
// handlers can match on exception identity:
//
//	Kind                         Primitive
//	──────────────────────────────────────────────────────────────
//	not_found                    RaiseNotFound
//	failure                      Failwith(message)
//	invalid_argument             InvalidArgument(message)
//	out_of_memory                RaiseOutOfMemory
//	stack_overflow               RaiseStackOverflow
//	sys_error                    RaiseSysError(message)
//	end_of_file                  RaiseEndOfFile
//	zero_divide                  RaiseZeroDivide
//	array_bound                  ArrayBoundError
//	blocked_io                   RaiseSysBlockedIO
//	foreign_exception            Raise(exn), bit for bit
//	foreign_exception_with_arg   RaiseWithArg(exn, arg)
//	wrapped                      Failwith(error text)
//	not_callable                 Failwith("value is not callable")
//	not_double_array             Failwith("invalid double array")
//	anything else                Failwith(error text)
//
// Recovered Go panics raise the exception registered under PanicException
// with the panic message, or Failure when none is registered.
//
// Raise never returns. It must only be called once all native cleanup has
// run, from the outermost native frame.
package bridge
