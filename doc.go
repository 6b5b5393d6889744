// Package factordb is a client for the FactorDB (http://factordb.com) lookup API.
//
// FactorDB stores known factorizations of integers. A lookup sends one GET
// request carrying the decimal number and decodes the JSON answer into a
// [Result]: the number's [Status] in the database and its (base, exponent)
// factor pairs. All numeric values are [math/big.Int] so numbers wider than
// 64 bits survive unchanged.
//
// # Querying
//
//	c := factordb.NewClient(
//		factordb.WithUserAgent("myapp/1.0"),
//	)
//	res, err := c.GetUint64(ctx, 42)
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.Flatten()) // [2 3 7]
//
// Numbers too large for a machine integer go through [Client.Get] or
// [Client.GetString]:
//
//	res, err := c.GetString(ctx, "1000000000000000000000000000000000000001")
//
// # Errors
//
// Failures come in two kinds that callers can tell apart with [errors.As]:
//
//   - [*HTTPError]: the service could not be reached, the context ended, or the
//     response status was not 2xx.
//   - [*ParseError]: the service answered but the body was not a valid lookup
//     result (malformed JSON, missing field, unrecognized status code).
//
// Input that is not a non-negative decimal integer fails with
// [ErrInvalidNumber] before any request is made.
//
// The client keeps no state between calls and may be shared by goroutines.
// It imposes no timeout of its own; bound calls with the context or with the
// [http.Client] passed to [WithHTTPClient].
package factordb
