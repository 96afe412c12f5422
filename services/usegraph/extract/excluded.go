// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

// DefaultReservedNames are declaration names whose bodies hold layout,
// preview or constant definitions and are never walked.
var DefaultReservedNames = []string{"Layout", "PreviewModifier", "Constants"}

// DefaultExcludedTypes are Foundation, SwiftUI and Combine type names that
// are never recorded as references.
//
// Dotted entries never match a single token and are kept so the list can be
// shared with callers that match qualified names.
var DefaultExcludedTypes = []string{
	// Foundation
	"String",
	"Int",
	"Bool",
	"URL",
	"Date",
	"Data",
	"UserDefaults",
	"NSAttributedString",
	"NSRange",
	"URLSession",
	"UUID",
	"FileManager",
	"NSError",
	"NSTimeZone",
	"NSPredicate",
	"NSLocale",
	"NSCalendar",
	"TimeInterval",
	"NSKeyedArchiver",
	"NSKeyedUnarchiver",
	"JSONDecoder",
	"JSONEncoder",
	"PropertyListDecoder",
	"PropertyListEncoder",
	"Double",
	"CGFloat",

	// SwiftUI
	"View",
	"Text",
	"Image",
	"Button",
	"HStack",
	"VStack",
	"LazyVStack",
	"ZStack",
	"ScrollView",
	"NavigationView",
	"List",
	"Toggle",
	"Slider",
	"TextField",
	"DatePicker",
	"Color",
	"LinearGradient",
	"RadialGradient",
	"AngularGradient",
	"Path",
	"Shape",
	"Gesture",
	"Environment",
	"EnvironmentObject",
	"State",
	"Binding",
	"ObservedObject",
	"GeometryReader",
	"PreviewModifier",
	"ForEach",
	"EmptyView",
	"Namespace",
	"Layout",

	// Combine
	"Publisher",
	"Subscriber",
	"AnyPublisher",
	"AnySubscriber",
	"Just",
	"Future",
	"Subscribers.Demand",
	"URLSession.DataTaskPublisher",
	"PassthroughSubject",
	"CurrentValueSubject",
	"Sink",
	"Assign",
	"Cancellable",
	"Scheduler",
	"DispatchQueue",
	"RunLoop",
	"OperationQueue",
	"Timer.TimerPublisher",
	"Delay",
	"Collect",
	"Map",
	"Filter",
	"Reduce",
	"Merge",
	"CombineLatest",
	"Zip",

	// Composable Architecture
	"IdentifiedArrayOf",
}
